// Package pipeline definiert die Fehlerklassen der Verarbeitungsschritte.
// Jeder Schritt degradiert zu einem klassifizierten Fehler, damit Aufrufer
// vorübergehende Netzwerkprobleme von dauerhaften Treffer-Fehlschlägen
// unterscheiden können.
package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind klassifiziert einen Pipeline-Fehler.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient: Netzwerkfehler oder serverseitige Fehler, die bei
	// einem erneuten Versuch verschwinden könnten.
	KindTransient
	// KindNotFound: Ressource oder Muster wurde nicht gefunden.
	KindNotFound
	// KindMalformed: die Antwort war vorhanden, aber nicht parsebar.
	KindMalformed
	// KindDecode: Bilddaten konnten nicht dekodiert werden.
	KindDecode
)

// String gibt den Klassennamen für Logausgaben zurück.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error ist ein klassifizierter Fehler eines Pipeline-Schritts.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E erstellt einen klassifizierten Fehler.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf erstellt einen klassifizierten Fehler aus einer Formatangabe.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf gibt die Klasse eines Fehlers zurück, auch wenn er weiter
// umwickelt wurde.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// KindFromStatus leitet die Fehlerklasse aus einem HTTP-Status ab.
func KindFromStatus(status int) Kind {
	if status == http.StatusTooManyRequests || status >= 500 {
		return KindTransient
	}
	return KindNotFound
}
