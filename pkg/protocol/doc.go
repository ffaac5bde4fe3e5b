// Package protocol implements the wire format shared by the distd server and
// its client.
//
// The protocol runs over a single TCP stream. Control traffic is ASCII text,
// one command or reply per CRLF-terminated line. File payloads travel on the
// same stream, delimited by in-band sentinels instead of length prefixes:
//
//	C: PUT a.txt
//	S: 150 File status okay; about to open data connection Ready to receive file: a.txt
//	S: READY_FOR_FILE
//	C: FILE_START
//	C: <raw bytes>
//	C: FILE_END
//	S: 226 Closing data connection, file transfer successful ...
//
// Replies carrying a body (LIST, STAT, and the 150 reply to GET) are
// followed by continuation lines without a code prefix and terminated by an
// empty line.
//
// Because the payload is not length-prefixed, a payload containing the byte
// sequence "FILE_END\r\n" is truncated at that point on upload. Downloads
// carry the exact size in the 150 reply, so readers that honour it are not
// affected.
package protocol
