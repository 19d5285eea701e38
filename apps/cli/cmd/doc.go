// Package cmd implements the restclient CLI commands using Cobra.
//
// Available commands:
//   - get, head, delete, post, put: send one request and print the response
//   - upload: send files as multipart/form-data
//   - bench: send one request many times and summarize latencies
//   - config: create or show the configuration file
//   - version: show version information
//
// Settings are resolved from the config file, RESTCLIENT_* variables
// (optionally read from a .env file) and global flags, in that order.
package cmd
