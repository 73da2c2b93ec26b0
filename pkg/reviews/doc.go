// Package reviews implements reviews of titles and comments on reviews.
//
// Paths nest title → review → comment. The Resolver checks each link and fails
// closed: a review addressed under the wrong title, or a comment under the wrong
// review, is reported as not found, with a distinct sentinel per cause.
//
// Each author may review a title once. The check runs before insert and the
// UNIQUE(title_id, author_id) constraint catches concurrent losers; both paths
// yield the same validation error.
package reviews
