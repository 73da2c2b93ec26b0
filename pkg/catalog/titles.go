package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// titleSelect reads titles with their category and the live rating. Callers append
// WHERE conditions on t.* or c.slug before titleGroupBy.
const titleSelect = `
	SELECT t.id, t.name, t.year, t.description, c.id, c.name, c.slug, AVG(r.score)
	FROM titles t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN reviews r ON r.title_id = t.id`

const titleGroupBy = `
	GROUP BY t.id, t.name, t.year, t.description, c.id, c.name, c.slug`

// titleRow is the stored shape of a title
type titleRow struct {
	Name        string
	Year        *int
	Description *string
	CategoryID  *int64
}

func (r titleRow) args() []interface{} {
	var year sql.NullInt64
	if r.Year != nil {
		year = sql.NullInt64{Int64: int64(*r.Year), Valid: true}
	}
	var description sql.NullString
	if r.Description != nil {
		description = sql.NullString{String: *r.Description, Valid: true}
	}
	var categoryID sql.NullInt64
	if r.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *r.CategoryID, Valid: true}
	}
	return []interface{}{r.Name, year, description, categoryID}
}

// TitleStore persists titles and their genre links
type TitleStore struct {
	q storage.Querier
}

// NewTitleStore creates a title store
func NewTitleStore(q storage.Querier) *TitleStore {
	return &TitleStore{q: q}
}

func scanTitle(row interface{ Scan(...interface{}) error }) (*Title, error) {
	var (
		t            Title
		year         sql.NullInt64
		description  sql.NullString
		categoryID   sql.NullInt64
		categoryName sql.NullString
		categorySlug sql.NullString
		rating       sql.NullFloat64
	)
	err := row.Scan(&t.ID, &t.Name, &year, &description, &categoryID, &categoryName, &categorySlug, &rating)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		t.Year = &y
	}
	if description.Valid {
		d := description.String
		t.Description = &d
	}
	if categoryID.Valid {
		t.Category = &Term{ID: categoryID.Int64, Name: categoryName.String, Slug: categorySlug.String}
	}
	if rating.Valid {
		r := rating.Float64
		t.Rating = &r
	}
	t.Genres = make([]Term, 0)
	return &t, nil
}

// Get retrieves a title with category, genres and rating
func (s *TitleStore) Get(ctx context.Context, id int64) (*Title, error) {
	query := titleSelect + ` WHERE t.id = $1` + titleGroupBy
	t, err := scanTitle(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(ErrTitleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}

	if err := s.attachGenres(ctx, []*Title{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Exists reports whether a title with id exists
func (s *TitleStore) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM titles WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check title: %w", err)
	}
	return true, nil
}

func titleConditions(filter TitleFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Genre != "" {
		add(`EXISTS (SELECT 1 FROM genre_titles gt JOIN genres g ON g.id = gt.genre_id
			WHERE gt.title_id = t.id AND g.slug = $%d)`, filter.Genre)
	}
	if filter.Category != "" {
		add(`c.slug = $%d`, filter.Category)
	}
	if filter.Name != "" {
		add(`LOWER(t.name) LIKE LOWER($%d) ESCAPE '\'`, storage.ContainsPattern(filter.Name))
	}
	if filter.Year != nil {
		add(`t.year = $%d`, *filter.Year)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of titles ordered by id, plus the total matching count
func (s *TitleStore) List(ctx context.Context, filter TitleFilter) ([]*Title, int, error) {
	where, args := titleConditions(filter)

	var count int
	countQuery := `SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id` + where
	if err := s.q.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count titles: %w", err)
	}

	query := titleSelect + where + titleGroupBy +
		fmt.Sprintf(` ORDER BY t.id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	titles := make([]*Title, 0)
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate titles: %w", err)
	}
	rows.Close()

	if err := s.attachGenres(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, count, nil
}

// attachGenres loads the genres of every title in one query
func (s *TitleStore) attachGenres(ctx context.Context, titles []*Title) error {
	if len(titles) == 0 {
		return nil
	}

	byID := make(map[int64]*Title, len(titles))
	placeholders := make([]string, len(titles))
	args := make([]interface{}, len(titles))
	for i, t := range titles {
		byID[t.ID] = t
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = t.ID
	}

	query := fmt.Sprintf(`
		SELECT gt.title_id, g.id, g.name, g.slug
		FROM genre_titles gt
		JOIN genres g ON g.id = gt.genre_id
		WHERE gt.title_id IN (%s)
		ORDER BY g.name, g.id`, strings.Join(placeholders, ", "))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load title genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var titleID int64
		var g Term
		if err := rows.Scan(&titleID, &g.ID, &g.Name, &g.Slug); err != nil {
			return fmt.Errorf("failed to scan genre: %w", err)
		}
		if t, ok := byID[titleID]; ok {
			t.Genres = append(t.Genres, g)
		}
	}
	return rows.Err()
}

// Create inserts a title and returns its id
func (s *TitleStore) Create(ctx context.Context, row titleRow) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO titles (name, year, description, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, row.args()...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create title: %w", err)
	}
	return id, nil
}

// Replace overwrites every stored column of a title
func (s *TitleStore) Replace(ctx context.Context, id int64, row titleRow) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE titles SET name = $1, year = $2, description = $3, category_id = $4
		WHERE id = $5
	`, append(row.args(), id)...)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(ErrTitleNotFound)
	}
	return nil
}

// SetGenres replaces the genre links of a title
func (s *TitleStore) SetGenres(ctx context.Context, titleID int64, genreIDs []int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM genre_titles WHERE title_id = $1`, titleID); err != nil {
		return fmt.Errorf("failed to clear title genres: %w", err)
	}
	for _, genreID := range genreIDs {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO genre_titles (title_id, genre_id) VALUES ($1, $2)`, titleID, genreID)
		if err != nil {
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}
	return nil
}

// Delete removes a title; its reviews, comments and genre links cascade
func (s *TitleStore) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(ErrTitleNotFound)
	}
	return nil
}
