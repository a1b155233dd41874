package view

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dbTimeout = 5 * time.Second

var printer = message.NewPrinter(language.English)

// FormatAmount renders an integer amount with thousands separators.
func FormatAmount(v int64) string {
	return printer.Sprintf("%d", v)
}

// FormatTime formats a timestamp the way the history table shows it.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
