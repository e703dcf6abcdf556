package recovery

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"timetable-import/internal/schedule"
)

const completeResponse = `{
  "days": ["Day 1", "Day 2"],
  "periods": [
    {"name": "Period 1", "startTime": "8:35am", "endTime": "9:35am"},
    {"name": "Lunch", "startTime": "12:40pm", "endTime": "1:20pm"}
  ],
  "classes": {
    "Day 1": {
      "Period 1": [{"subject": "Mathematics", "code": "(10MA1)", "room": "M 07", "teacher": "Mr John Smith"}],
      "Lunch": []
    },
    "Day 2": {
      "Period 1": [{"subject": "English", "code": "(10EN1)"}],
      "Lunch": []
    }
  }
}`

func TestRecover_ValidInputIsUnchanged(t *testing.T) {
	var want schedule.Document
	if err := json.Unmarshal([]byte(completeResponse), &want); err != nil {
		t.Fatalf("fixture does not parse: %v", err)
	}

	res, err := Recover(completeResponse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageDirect {
		t.Errorf("expected direct stage, got %s", res.Stage)
	}
	if !reflect.DeepEqual(*res.Document, want) {
		t.Errorf("expected %+v, got %+v", want, *res.Document)
	}
}

func TestRecover_StripsFenceAndProse(t *testing.T) {
	fenced := "Here is the timetable:\n```json\n" + completeResponse + "\n```\nLet me know if you need anything else."
	res, err := Recover(fenced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageDirect || len(res.Document.Classes) != 2 {
		t.Errorf("expected direct parse with 2 day-blocks, got %s with %d", res.Stage, len(res.Document.Classes))
	}

	trailing := completeResponse + "\nHope this helps!"
	res, err = Recover(trailing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageDirect {
		t.Errorf("expected direct stage with trailing prose, got %s", res.Stage)
	}
}

func TestRecover_CleanupRepairsKeysAndCommas(t *testing.T) {
	input := `{days: ["Day 1"], 'periods': [{"name": "Period 1", "startTime": "8:00am", "endTime": "9:00am",},], classes: {"Day 1": {"Period 1": [{"subject": "Art, Design",}]}},}`

	res, err := Recover(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageCleanup {
		t.Fatalf("expected cleanup stage, got %s", res.Stage)
	}
	if len(res.Document.Periods) != 1 || res.Document.Periods[0].EndTime != "9:00am" {
		t.Errorf("unexpected periods: %+v", res.Document.Periods)
	}
	got := res.Document.Slot("Day 1", "Period 1")
	if len(got) != 1 || got[0].Subject != "Art, Design" {
		t.Errorf("expected string contents untouched, got %+v", got)
	}
}

func TestRecover_TruncatedKeepsCompleteDayBlocks(t *testing.T) {
	var days []string
	for i := 1; i <= 10; i++ {
		days = append(days, strconv.Quote("Day "+strconv.Itoa(i)))
	}
	input := `{"days": [` + strings.Join(days, ", ") + `],
  "periods": [
    {"name": "Period 1", "startTime": "8:35am", "endTime": "9:35am"},
    {"name": "Period 2", "startTime": "9:40am", "endTime": "10:40am"},
    {"name": "Recess", "startTime": "10:40am", "endTime": "11:00am"},
    {"name": "Period 3", "startTime": "11:00am", "endTime": "12:00pm"},
    {"name": "Lunch", "startTime": "12:40pm", "endTime": "1:20pm"},
    {"name": "Period 4", "startTime": "1:20pm", "endTime": "2:20pm"}
  ],
  "classes": {
    "Day 1": {
      "Period 1": [{"subject": "Mathematics", "code": "(10MA1)", "room": "M 07"}],
      "Period 2": [{"subject": "Science", "code": "(10SC1)"}],
      "Recess": [],
      "Period 3": [{"subject": "History", "code": "(10HI1)"}],
      "Lunch": [],
      "Period 4": [{"subject": "Art", "code": "(10AR1)"}]
    },
    "Day 2": {
      "Period 1": [{"subject": "English", "code": "(10EN`

	res, err := Recover(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageReconstructed {
		t.Errorf("expected reconstructed stage, got %s", res.Stage)
	}
	if !res.Truncated {
		t.Error("expected truncation inside a string to be reported")
	}
	if len(res.Document.Days) != 10 {
		t.Errorf("expected 10 days, got %d", len(res.Document.Days))
	}
	if len(res.Document.Periods) != 6 {
		t.Errorf("expected 6 periods, got %d", len(res.Document.Periods))
	}
	if len(res.Document.Classes) != 1 {
		t.Fatalf("expected exactly 1 day-block, got %d", len(res.Document.Classes))
	}
	if _, ok := res.Document.Classes["Day 1"]; !ok {
		t.Fatalf("expected Day 1 to survive, got %v", res.Document.Classes)
	}
	if res.Blocks != 1 || res.Dropped != 1 {
		t.Errorf("expected 1 kept and 1 dropped block, got %d and %d", res.Blocks, res.Dropped)
	}
	if got := res.Document.Slot("Day 1", "Period 1"); len(got) != 1 || got[0].Room != "M 07" {
		t.Errorf("unexpected Day 1 Period 1: %+v", got)
	}
}

func TestRecover_DropsInvalidBlocks(t *testing.T) {
	input := `{"days": ["Day 1", "Day 2", "Day 3"],
  "periods": [{"name": "Period 1", "startTime": "8:35am", "endTime": "9:35am"}],
  "classes": {
    "Day 1": {"Period 1": [{"subject": "Maths"}]},
    "Day 2": {"Period 1": [{"subject": 7}]},
    "Day 3": {"Period 1": [{"subject": "Art"`

	res, err := Recover(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Document.Classes) != 1 {
		t.Fatalf("expected only Day 1 to be kept, got %v", res.Document.Classes)
	}
	if res.Dropped != 2 {
		t.Errorf("expected 2 dropped blocks, got %d", res.Dropped)
	}

	input = `{"days": ["Day 1", "Day 2", "Day 3"],
  "periods": [{"name": "P1", "startTime": "8:35am", "endTime": "9:35am"}],
  "classes": {"Day 1": [], "Day 2": {"P1": [{"subject": "B"}]}, "Day 3": {"P1": [`

	res, err = Recover(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageReconstructed {
		t.Fatalf("expected reconstructed stage, got %s", res.Stage)
	}
	if got := res.Document.Classes["Day 2"]["P1"]; len(got) != 1 || got[0].Subject != "B" {
		t.Errorf("expected Day 2 kept past a non-object member, got %v", res.Document.Classes)
	}
	if len(res.Document.Classes) != 1 || res.Dropped != 2 {
		t.Errorf("expected 1 block kept and 2 dropped, got %d and %d", len(res.Document.Classes), res.Dropped)
	}
}

func TestRecover_SkeletonWhenNoBlockCompletes(t *testing.T) {
	input := `{"days": ["Day 1", "Day 2"], "periods": [{"name": "Period 1", "startTime": "8:35am", "endTime": "9:35am"}], "classes": {"Day 1": {"Period 1": [{"subject": "Ma`

	res, err := Recover(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageSkeleton {
		t.Errorf("expected skeleton stage, got %s", res.Stage)
	}
	if res.Document.Classes == nil || len(res.Document.Classes) != 0 {
		t.Errorf("expected empty classes, got %v", res.Document.Classes)
	}
	if len(res.Document.Days) != 2 || len(res.Document.Periods) != 1 {
		t.Errorf("expected days and periods kept, got %+v", res.Document)
	}
}

func TestRecover_Unrecoverable(t *testing.T) {
	inputs := []string{
		"I'm sorry, I can't read that timetable.",
		`{"error": "rate limited"}`,
		`{"days": ["Day 1", "Day 2"], "periods": [{"name": "Period 1", "startT`,
		"",
	}
	for _, in := range inputs {
		doc, err := RecoverTruncatedResponse(in)
		if !errors.Is(err, ErrUnrecoverable) {
			t.Errorf("input %q: expected ErrUnrecoverable, got %v (%+v)", in, err, doc)
		}
	}
}

func TestCleanupLeavesStringsAlone(t *testing.T) {
	in := `{"note": "a, } 'b': c,", x: 1,}`
	want := `{"note": "a, } 'b': c,", "x": 1}`
	if got := cleanup(in); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSplitBlocks(t *testing.T) {
	blocks, partial := splitBlocks(` "A": {"x": "}"}, "B": {"y": [1, 2]} , "C": {"z": `)
	if len(blocks) != 2 || partial != 1 {
		t.Fatalf("expected 2 blocks and 1 partial, got %d and %d", len(blocks), partial)
	}
	if blocks[0] != `"A": {"x": "}"}` {
		t.Errorf("unexpected first block %s", blocks[0])
	}

	blocks, partial = splitBlocks(`"A": [{"x": "]"}], "B": {"x": 1}, "C": 5, "D": "s}", "E": {}}`)
	if len(blocks) != 2 || partial != 3 {
		t.Fatalf("expected non-object members skipped, got %d blocks and %d partial", len(blocks), partial)
	}
	if blocks[1] != `"E": {}` {
		t.Errorf("unexpected last block %s", blocks[1])
	}

	blocks, partial = splitBlocks(`"A": {}}`)
	if len(blocks) != 1 || partial != 0 {
		t.Errorf("expected a closed body to have no partial block, got %d and %d", len(blocks), partial)
	}
}
