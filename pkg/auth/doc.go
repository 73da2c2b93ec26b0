// Package auth holds the identity primitives the rest of the service builds on: the
// closed Role enum, the request Actor with its orthogonal staff/superuser capability,
// HS256 access tokens and confirmation codes.
//
// # Tokens
//
//	issuer := auth.NewTokenIssuer(secret, 24*time.Hour, "verdict")
//	token, err := issuer.Issue(actor)
//	claims, err := issuer.Parse(token)
//
// # Confirmation codes
//
// Codes are six random alphanumeric characters. Only their bcrypt hash is stored.
//
//	code, err := auth.GenerateCode()
//	hash, err := auth.NewCodeHasher(bcrypt.DefaultCost).Hash(code)
package auth
