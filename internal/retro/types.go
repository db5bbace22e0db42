package retro

import "strings"

type Stage string

const (
	StageLobby          Stage = "lobby"
	StagePrimeDirective Stage = "prime_directive"
	StageIdeaGeneration Stage = "idea_generation"
	StageGrouping       Stage = "grouping"
	StageGroupLabeling  Stage = "group_labeling"
	StageVoting         Stage = "voting"
	StageActionItems    Stage = "action_items"
	StageFinished       Stage = "finished"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageLobby,
	StagePrimeDirective,
	StageIdeaGeneration,
	StageGrouping,
	StageGroupLabeling,
	StageVoting,
	StageActionItems,
	StageFinished,
}

// Index returns the position of s in the lifecycle, or -1 when s is unknown.
func (s Stage) Index() int {
	for i, v := range Stages {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Index() >= 0 }

func ParseStage(v string) (Stage, bool) {
	s := Stage(strings.TrimSpace(v))
	return s, s.Valid()
}

type RetroType string

const (
	RetroEmotions RetroType = "emotions"
	RetroProgress RetroType = "progress"
)

type IdeaType string

const (
	IdeaHappy    IdeaType = "happy"
	IdeaSad      IdeaType = "sad"
	IdeaConfused IdeaType = "confused"

	IdeaStart    IdeaType = "start"
	IdeaStop     IdeaType = "stop"
	IdeaContinue IdeaType = "continue"
)

var categories = map[RetroType][]IdeaType{
	RetroEmotions: {IdeaHappy, IdeaSad, IdeaConfused},
	RetroProgress: {IdeaStart, IdeaStop, IdeaContinue},
}

func (t RetroType) Valid() bool {
	_, ok := categories[t]
	return ok
}

func ParseRetroType(v string) (RetroType, bool) {
	t := RetroType(strings.TrimSpace(strings.ToLower(v)))
	return t, t.Valid()
}

// Categories returns the idea categories a retro of this type accepts.
func (t RetroType) Categories() []IdeaType {
	return append([]IdeaType(nil), categories[t]...)
}

// Allows reports whether an idea of category c belongs on a retro of type t.
func (t RetroType) Allows(c IdeaType) bool {
	for _, v := range categories[t] {
		if v == c {
			return true
		}
	}
	return false
}
