package quality

import (
	"reflect"
	"testing"
)

func TestValidateICU(t *testing.T) {
	valid := []string{
		"",
		"Hello world",
		"Hello {name}!",
		"{count, plural, =0 {No items} one {# item} other {# items}}",
		"{count, plural, offset:1 one {# item} other {# items}}",
		"{gender, select, male {He} female {She} other {They}}",
		"{n, number, integer} files",
		"{when, date, short}",
		"It''s {name}",
		"'{not an argument}'",
		"100% done",
		"Nested {count, plural, other {{name} has # items}}",
		"lonely ' apostrophe",
		"issue '#'42",
		"{count, plural, other {{gender, select, other {# left}}}}",
	}
	for _, msg := range valid {
		if err := ValidateICU(msg); err != nil {
			t.Errorf("ValidateICU(%q) = %v, want nil", msg, err)
		}
	}

	invalid := []string{
		"Hello {name",
		"Hello name}",
		"Hello {}",
		"{count, plural}",
		"{count, plural, one {# item}}",                 // missing 'other'
		"{gender, select, male {He}}",                   // missing 'other'
		"{count, plural, =x {bad} other {ok}}",          // malformed exact selector
		"{count, plural, one # item} other {# items}}",  // selector without sub-message
		"{name, }",
		"You have # items",                              // '#' outside any plural
		"{gender, select, other {# of them}}",           // select alone gives '#' no meaning
	}
	for _, msg := range invalid {
		if err := ValidateICU(msg); err == nil {
			t.Errorf("ValidateICU(%q) = nil, want error", msg)
		}
	}
}

func TestParseICUArguments(t *testing.T) {
	args, err := ParseICUArguments("Hi {name}, you have {count, plural, =0 {nothing} other {{count} items from {sender}}}.")
	if err != nil {
		t.Fatalf("ParseICUArguments failed: %v", err)
	}
	want := []string{"name", "count", "sender"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestParseICUArgumentsIgnoresQuotedBraces(t *testing.T) {
	args, err := ParseICUArguments("Literal '{brace}' but real {flag}")
	if err != nil {
		t.Fatalf("ParseICUArguments failed: %v", err)
	}
	if !reflect.DeepEqual(args, []string{"flag"}) {
		t.Errorf("args = %v, want [flag]", args)
	}
}
