// Command resetpw is a CLI utility for account password management.
//
// Usage:
//
//	resetpw reset <username>   Reset an account's password. The new
//	                           password is read from the terminal
//	                           without echo.
//	resetpw status             Report whether any account exists.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//
// Initial account registration happens through the web interface;
// this tool only resets existing passwords.
package main
