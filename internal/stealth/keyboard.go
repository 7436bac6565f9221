package stealth

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"unicode"
)

// KeyBackspace is the Key value of a correction keystroke
const KeyBackspace = "\b"

// KeyAction is one keystroke followed by a pause
type KeyAction struct {
	Key   string
	Delay time.Duration
}

// Keyboard turns text into keystrokes with a words-per-minute cadence and
// optional typo/correction pairs
type Keyboard struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewKeyboard creates a new Keyboard instance
func NewKeyboard() *Keyboard {
	return &Keyboard{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// neighbours on a QWERTY layout, used to pick believable typos
var neighbours = map[rune]string{
	'a': "sqwzx", 'b': "vghn", 'c': "xdfv", 'd': "serfcx", 'e': "wrds",
	'f': "drtgvc", 'g': "ftyhbv", 'h': "gyujnb", 'i': "uokj", 'j': "huikmn",
	'k': "jiolm", 'l': "kop", 'm': "njk", 'n': "bhjm", 'o': "iplk",
	'p': "ol", 'q': "wa", 'r': "etfd", 's': "awedxz", 't': "rygf",
	'u': "yijh", 'v': "cfgb", 'w': "qesa", 'x': "zsdc", 'y': "tuhg", 'z': "asx",
}

// Actions returns the keystrokes for text. Typing the Key values in order,
// treating KeyBackspace as a deletion, always yields text.
func (k *Keyboard) Actions(ctx context.Context, text string, wpmMin, wpmMax int, typoProb float64) ([]KeyAction, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if wpmMin < 1 {
		wpmMin = 1
	}
	if wpmMax < wpmMin {
		wpmMax = wpmMin
	}

	// five characters and a space per word
	wpm := wpmMin + k.rng.Intn(wpmMax-wpmMin+1)
	perChar := (60.0 / float64(wpm)) / 6.0

	runes := []rune(text)
	actions := make([]KeyAction, 0, len(runes))
	for i, r := range runes {
		select {
		case <-ctx.Done():
			return actions, ctx.Err()
		default:
		}

		if typo, ok := k.typo(r); ok && i < len(runes)-1 && k.rng.Float64() < typoProb {
			actions = append(actions,
				KeyAction{Key: string(typo), Delay: k.delay(perChar, r) + time.Duration(100+k.rng.Intn(200))*time.Millisecond},
				KeyAction{Key: KeyBackspace, Delay: k.delay(perChar*0.7, r)},
			)
		}
		actions = append(actions, KeyAction{Key: string(r), Delay: k.delay(perChar, r)})
	}

	return actions, nil
}

func (k *Keyboard) typo(r rune) (rune, bool) {
	near, ok := neighbours[unicode.ToLower(r)]
	if !ok {
		return r, false
	}
	t := rune(near[k.rng.Intn(len(near))])
	if unicode.IsUpper(r) {
		t = unicode.ToUpper(t)
	}
	return t, true
}

func (k *Keyboard) delay(base float64, r rune) time.Duration {
	d := base * (0.8 + k.rng.Float64()*0.4)
	switch r {
	case ' ', '\n', '\t':
		d *= 1.5 + k.rng.Float64()*0.5
	case '.', ',', '!', '?', '@':
		d *= 1.2 + k.rng.Float64()*0.3
	}
	d += k.rng.Float64() * 0.01
	return time.Duration(d * float64(time.Second))
}
