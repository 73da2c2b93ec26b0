// Package mail delivers confirmation codes. SMTPMailer talks to a relay with net/smtp;
// LogMailer writes the message to the structured log for local development.
package mail
