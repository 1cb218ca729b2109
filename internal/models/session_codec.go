package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when a stored session carries an unrecognised mode.
var ErrUnknownMode = errors.New("unknown session mode")

// sessionRecord is the wire form of a Session, shared by every persistent backend.
type sessionRecord struct {
	Mode         Mode              `json:"mode"`
	History      []string          `json:"history,omitempty"`
	Step         int               `json:"step,omitempty"`
	Answers      map[string]string `json:"answers,omitempty"`
	TransferStep TransferStep      `json:"transfer_step,omitempty"`
	TransferData *TransferData     `json:"transfer_data,omitempty"`
}

// MarshalSession encodes a session as JSON.
func MarshalSession(s Session) ([]byte, error) {
	var rec sessionRecord
	switch v := s.(type) {
	case EducationalSession:
		rec = sessionRecord{Mode: ModeEducational, History: v.History}
	case ScoringSession:
		rec = sessionRecord{Mode: ModeScoring, Step: v.Step, Answers: v.Answers}
	case TransferSession:
		data := v.Data
		rec = sessionRecord{Mode: ModeTransfer, TransferStep: v.Step, TransferData: &data}
	default:
		return nil, fmt.Errorf("cannot marshal session of type %T", s)
	}
	return json.Marshal(rec)
}

// UnmarshalSession decodes a session previously produced by MarshalSession.
func UnmarshalSession(data []byte) (Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	switch rec.Mode {
	case ModeEducational:
		history := rec.History
		if history == nil {
			history = []string{}
		}
		return EducationalSession{History: history}, nil
	case ModeScoring:
		answers := rec.Answers
		if answers == nil {
			answers = map[string]string{}
		}
		return ScoringSession{Step: rec.Step, Answers: answers}, nil
	case ModeTransfer:
		s := TransferSession{Step: rec.TransferStep}
		if rec.TransferData != nil {
			s.Data = *rec.TransferData
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, rec.Mode)
	}
}
