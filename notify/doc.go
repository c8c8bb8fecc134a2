// Package notify renders and delivers verification emails. [SMTP] speaks plain
// SMTP with implicit TLS on port 465 and opportunistic STARTTLS elsewhere;
// [Log] writes messages to the structured log for local development.
package notify
