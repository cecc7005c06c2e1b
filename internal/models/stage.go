package models

import (
	"encoding/json"
	"time"
)

// Stage is what a participant can currently do in an auction. It is
// either an EntryStage or a RoundStage.
type Stage interface {
	StageType() string
	isStage()
}

// EntryStage means the participant has not joined yet and may still pay
// the entry fee.
type EntryStage struct {
	EntryFee     int64     `json:"entryFee"`
	EntryFeeBoxA int64     `json:"entryFeeBoxA"`
	EntryFeeBoxB int64     `json:"entryFeeBoxB"`
	ClosesAt     time.Time `json:"closesAt"`
}

// RoundStage describes a round from the participant's point of view
type RoundStage struct {
	RoundNumber      int                `json:"roundNumber"`
	Status           RoundStatus        `json:"status"`
	OpensAt          time.Time          `json:"opensAt"`
	ClosesAt         time.Time          `json:"closesAt"`
	MinBid           int64              `json:"minBid"`
	MaxBid           int64              `json:"maxBid"`
	HasBid           bool               `json:"hasBid"`
	WinnersAnnounced bool               `json:"winnersAnnounced"`
	Leaderboard      []LeaderboardEntry `json:"leaderboard,omitempty"`
}

func (EntryStage) StageType() string { return "entry" }
func (RoundStage) StageType() string { return "round" }

func (EntryStage) isStage() {}
func (RoundStage) isStage() {}

func (s EntryStage) MarshalJSON() ([]byte, error) {
	type plain EntryStage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{s.StageType(), plain(s)})
}

func (s RoundStage) MarshalJSON() ([]byte, error) {
	type plain RoundStage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{s.StageType(), plain(s)})
}
