package complete

// trigger is the classifier's verdict on a line prefix.
type trigger int

const (
	// triggerDispatch sends the prefix through the pattern rules.
	triggerDispatch trigger = iota
	// triggerMath answers with a single \( or \[ snippet.
	triggerMath
	// triggerNone answers with nothing. Plain brackets land here so that
	// ordinary parentheses never pop a completion list.
	triggerNone
)

// classify inspects the invocation character (the last rune of prefix) and
// the rune before it.
func classify(prefix string) (trigger, rune) {
	invoke, before := lastRunes(prefix)
	if invoke != '(' && invoke != '[' {
		return triggerDispatch, invoke
	}
	if before == '\\' {
		return triggerMath, invoke
	}
	return triggerNone, invoke
}

// mathSnippet builds the inline or display math suggestion for invoke.
// With auto-closing brackets the editor has already inserted the closing
// bracket after the cursor, so the snippet replaces it.
func mathSnippet(invoke rune, pos Position, autoClosing bool) Suggestion {
	s := Suggestion{
		Kind:    KindFunction,
		Snippet: true,
	}
	if invoke == '(' {
		s.Label = `\(`
		s.InsertText = `${1}\)${0}`
		s.Detail = `inline math \( ... \)`
	} else {
		s.Label = `\[`
		s.InsertText = `${1}\]${0}`
		s.Detail = `display math \[ ... \]`
	}
	if autoClosing {
		s.Range = &Range{
			Start: pos,
			End:   Position{Line: pos.Line, Character: pos.Character + 1},
		}
	}
	return s
}
