package game

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room full")
	ErrRoomStarted     = errors.New("room already started")
	ErrNotHost         = errors.New("only the host can do that")
	ErrWrongPhase      = errors.New("wrong room phase")
	ErrNotReady        = errors.New("not every player is ready")
	ErrNoSegment       = errors.New("no build segment")
	ErrSegmentLocked   = errors.New("segment is verified or being tested")
	ErrOutOfRegion     = errors.New("placement outside of build region")
	ErrMissingMarkers  = errors.New("segment needs a spawn and a finish marker")
	ErrVoterUnverified = errors.New("only verified players can vote")
	ErrTargetVerified  = errors.New("verified players cannot be vote-kicked")
	ErrSelfVote        = errors.New("cannot vote against yourself")
	ErrAlreadyFinished = errors.New("already finished")
	ErrUnknownWeapon   = errors.New("unknown weapon")
)
