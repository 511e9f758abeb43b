// Package notifier delivers fired reminders.
//
// A delivery renders the reminder once and sends it through two independent
// steps: the chat transport addressed by the job's chat, then the
// notification topic. A failed step is logged and reported but never
// prevents the other step, and never feeds back into scheduling.
//
// Chat sends go through a token-bucket limiter so a burst of reminders firing
// on the same slot doesn't trip the platform's flood limits.
package notifier
