package leveling

import (
	"fmt"
	"time"
)

// Action is something a user does that earns XP.
type Action string

const (
	ActionUploadPDF         Action = "UPLOAD_PDF"
	ActionPDFProcessing     Action = "PDF_PROCESSING"
	ActionAskQuestion       Action = "ASK_QUESTION"
	ActionSummaryCommand    Action = "SUMMARY_COMMAND"
	ActionShortNotes        Action = "SHORT_NOTES"
	ActionQuizMe            Action = "QUIZ_ME"
	ActionCorrectQuizAnswer Action = "CORRECT_QUIZ_ANSWER"
	ActionLongStudySession  Action = "LONG_STUDY_SESSION" // 20+ minutes
	ActionDailyStreak       Action = "DAILY_STREAK"
	ActionCreateBot         Action = "CREATE_BOT"
)

var rewards = map[Action]int{
	ActionUploadPDF:         30,
	ActionPDFProcessing:     20,
	ActionAskQuestion:       5,
	ActionSummaryCommand:    15,
	ActionShortNotes:        12,
	ActionQuizMe:            20,
	ActionCorrectQuizAnswer: 8,
	ActionLongStudySession:  50,
	ActionDailyStreak:       25,
	ActionCreateBot:         10,
}

var descriptions = map[Action]string{
	ActionUploadPDF:         "Planet snacks on new knowledge crystals!",
	ActionPDFProcessing:     "Om nom nom… digesting data!",
	ActionAskQuestion:       "Planet listens wisely.",
	ActionSummaryCommand:    "Planet scribbles in its cosmic notebook.",
	ActionShortNotes:        "Planet condenses wisdom squishily.",
	ActionQuizMe:            "Planet challenges you like a space sensei!",
	ActionCorrectQuizAnswer: "Brain blast! Planet celebrates.",
	ActionLongStudySession:  "Planet meditates and glows brighter.",
	ActionDailyStreak:       "Planet returns every day like a reliable space buddy.",
	ActionCreateBot:         "Baby planet is born with a sparkle!",
}

const defaultDescription = "Planet grows stronger!"

// Reward returns the XP granted for a, or 0 if a is unknown.
func (a Action) Reward() int {
	return rewards[a]
}

// Description returns the flavour text shown with an XP toast.
func (a Action) Description() string {
	if d, ok := descriptions[a]; ok {
		return d
	}
	return defaultDescription
}

// ParseAction validates a wire-level action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := rewards[a]; !ok {
		return "", fmt.Errorf("unknown xp action %q", s)
	}
	return a, nil
}

const (
	streakBonusPerDay = 2
	streakBonusCap    = 30
)

// DailyStreakXP is the base streak reward plus 2 XP per day, bonus capped at 30.
func DailyStreakXP(streakDays int) int {
	return rewards[ActionDailyStreak] + min(streakDays*streakBonusPerDay, streakBonusCap)
}

// AreConsecutiveDays reports whether a and b fall on adjacent calendar days
// in a's location.
func AreConsecutiveDays(a, b time.Time) bool {
	d1 := truncateDay(a)
	d2 := truncateDay(b.In(a.Location()))
	diff := d2.Sub(d1)
	if diff < 0 {
		diff = -diff
	}
	// DST days are 23h or 25h long.
	return diff > 20*time.Hour && diff < 28*time.Hour
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b.In(a.Location())))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
