package notify

import "fmt"

// Title/body catalogs keyed by language code. The receiver's stored language
// preference picks the catalog; anything unknown falls back to English.

type catalog struct {
	incomingAudioTitle string
	incomingVideoTitle string
	incomingBody       string
	missedTitle        string
	missedBody         string
}

var catalogs = map[string]catalog{
	"en": {
		incomingAudioTitle: "Incoming voice call",
		incomingVideoTitle: "Incoming video call",
		incomingBody:       "%s is calling you",
		missedTitle:        "Missed call",
		missedBody:         "You missed a call from %s",
	},
	"es": {
		incomingAudioTitle: "Llamada de voz entrante",
		incomingVideoTitle: "Videollamada entrante",
		incomingBody:       "%s te está llamando",
		missedTitle:        "Llamada perdida",
		missedBody:         "Tienes una llamada perdida de %s",
	},
	"pt": {
		incomingAudioTitle: "Chamada de voz recebida",
		incomingVideoTitle: "Chamada de vídeo recebida",
		incomingBody:       "%s está ligando para você",
		missedTitle:        "Chamada perdida",
		missedBody:         "Você perdeu uma chamada de %s",
	},
}

// Localize renders the title/body pair for a payload in the given language.
func Localize(lang string, p Payload, callerName string) (title, body string) {
	cat, ok := catalogs[lang]
	if !ok {
		cat = catalogs["en"]
	}
	if callerName == "" {
		callerName = "Someone"
	}

	switch p.Type {
	case TypeMissedCall:
		return cat.missedTitle, fmt.Sprintf(cat.missedBody, callerName)
	default:
		title = cat.incomingVideoTitle
		if p.IsAudioOnly {
			title = cat.incomingAudioTitle
		}
		return title, fmt.Sprintf(cat.incomingBody, callerName)
	}
}
