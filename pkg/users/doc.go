// Package users implements the identity side of verdict: signup with an emailed
// confirmation code, the code-for-token exchange, self service and the admin user
// directory.
//
// Confirmation codes are stored as bcrypt hashes, work once, and expire after the
// configured TTL. A CodeSweeper clears expired codes on a cron schedule.
//
// Usage:
//
//	svc := users.NewService(users.ServiceConfig{
//		DB:      db,
//		Tokens:  auth.NewTokenIssuer(secret, 24*time.Hour, "verdict"),
//		Mailer:  mail.NewLogMailer(logger),
//		CodeTTL: 24 * time.Hour,
//	})
//	resp, err := svc.Register(ctx, users.SignupRequest{Username: "ann", Email: "ann@example.com"})
package users
