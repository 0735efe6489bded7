// Package main provides the emailscope command line interface.
//
// emailscope crawls a company website, extracts and synthesizes contact
// addresses, and verifies each one.
//
// Usage:
//
//	emailscope discover <domain>...
//	emailscope watch --interval 24h <domain>...
//	emailscope history <domain>
//	emailscope mcp-server --transport stdio
package main

import "os"

func main() {
	os.Exit(Execute())
}
