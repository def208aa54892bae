// Package notify delivers alerts to the operator.
//
// A Channel sends plain text, photos and documents. Three implementations
// are provided:
//   - Telegram: the Bot API over HTTPS (sendMessage, sendPhoto, sendDocument)
//   - Console: writes to an io.Writer, used when no bot is configured
//   - Multi: fans out to several channels
//
// The message builders in this package produce the Spanish texts the
// operators read on their phones.
//
// Design decision: Channels return errors but callers in the monitoring
// loop only log them. A failed alert must never stop the next check.
package notify
