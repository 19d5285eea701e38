// Package output renders requests, responses and errors for humans and
// machines.
//
// Loggers implementing http.RequestLogger:
//   - ConsoleLogger: colored terminal trace, optionally with headers and bodies
//   - LogrusLogger: structured entries through logrus, JSON or text
//
// ConsoleFormatter prints command results on stdout.
package output
