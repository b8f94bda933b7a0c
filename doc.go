// Package ftpserver implements the core of a multi-user FTP server:
// session state machine, path resolver, data-connection manager,
// asynchronous transfer engine, reader/writer file locks and the
// authentication/permission model described in RFC 959 plus the
// SIZE, MDTM, REST and FEAT extensions.
package ftpserver
