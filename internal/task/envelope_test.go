package task

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	args := []interface{}{"group-1", float64(42)}
	raw, err := Encode(args, float64(1690000000000))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	arr, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	gotArgs, tail := Split(arr, 1)
	if len(gotArgs) != 2 || gotArgs[0] != "group-1" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	ts, err := AsInt64(tail[0])
	if err != nil {
		t.Fatalf("as int64: %v", err)
	}
	if ts != 1690000000000 {
		t.Fatalf("unexpected timestamp: %d", ts)
	}
}

func TestGroupKeyStringifiesFirstArg(t *testing.T) {
	got, err := GroupKey([]interface{}{float64(7), "x"})
	if err != nil {
		t.Fatalf("group key: %v", err)
	}
	if got != "7" {
		t.Fatalf("expected \"7\", got %q", got)
	}

	got, err = GroupKey([]interface{}{"user-42", "x"})
	if err != nil {
		t.Fatalf("group key: %v", err)
	}
	if got != "user-42" {
		t.Fatalf("expected \"user-42\", got %q", got)
	}
}

func TestGroupKeyEmptyArgs(t *testing.T) {
	if _, err := GroupKey(nil); err == nil {
		t.Fatal("expected error for empty args")
	}
}

func TestSplitPanicsOnShortArray(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on short array")
		}
	}()
	Split([]interface{}{"only-one"}, 2)
}

func TestDecodeRejectsEmptyArray(t *testing.T) {
	if _, err := Decode("[]"); err == nil {
		t.Fatal("expected error for empty array")
	}
}

func TestAsStringSlice(t *testing.T) {
	got, err := AsStringSlice([]interface{}{"a", "b"})
	if err != nil {
		t.Fatalf("as string slice: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected result: %v", got)
	}
}
