// Package telnet implements the minimal slice of the Telnet protocol a
// one-way animation server needs: enough option negotiation to put the
// client terminal into character mode with local echo off, transparent
// escaping of command bytes in outgoing data, and stripping of command
// sequences from incoming data.
//
// # Negotiation
//
// On Negotiate the server sends three offers and waits briefly for answers:
//
//	IAC WILL ECHO   server handles echoing (suppresses local echo)
//	IAC WILL SGA    server suppresses go-ahead signals
//	IAC DO   SGA    client should suppress go-ahead (character mode)
//
// Clients answer with DO/DONT and WILL/WONT. Negotiation fails open: a
// client that answers late, partially, or not at all is played the movie
// anyway once the negotiation deadline passes. Every other option a client
// proposes is refused (DONT/WONT), here and for the rest of the session.
//
// # Data phase
//
// Conn.Write escapes 0xFF payload bytes as IAC IAC. Conn.Read strips
// command and subnegotiation sequences, surfacing only plain data bytes;
// the server discards those, so reads serve purely as disconnect detection.
package telnet
