// Package cli implements the GuardShare command-line client.
//
// Commands:
//
//	view <linkID> [-u username]
//	download <linkID> [-u username] [-o path]
//
// When the server answers that the link password is wrong or missing and
// stdin is a terminal, the user is asked for it without echo and the call
// is repeated.
package cli
