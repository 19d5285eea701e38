// Package config loads restclient settings.
//
// Settings come from, in increasing precedence:
//   - DefaultConfig
//   - .restclient.json, restclient.json, .restclient.yaml or .restclient.yml
//   - RESTCLIENT_* variables from the process environment or a .env file
//   - command line flags, merged by the CLI
package config
