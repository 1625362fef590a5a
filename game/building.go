package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	regionWidth        = 60.0
	buildZRange        = 30.0
	buildExtensionSecs = 60
	earlyStartSecs     = 5
)

const (
	MARKER_SPAWN      = "spawn"
	MARKER_FINISH     = "finish"
	MARKER_CHECKPOINT = "checkpoint"
	MARKER_KILLZONE   = "killzone"
)

type BuildObject struct {
	Id    string `json:"id"`
	Kind  string `json:"kind"`
	Pos   Vec3   `json:"pos"`
	Rot   Vec3   `json:"rot"`
	Scale Vec3   `json:"scale"`
}

type BuildMarker struct {
	Id   string  `json:"id"`
	Kind string  `json:"kind"`
	Pos  Vec3    `json:"pos"`
	RotY float64 `json:"rotY"`
}

// buildSegment is one player's exclusive slice of the world during the
// building phase. verified is write-once; testing and editing are mutually
// exclusive.
type buildSegment struct {
	owner    *Player
	minX     float64
	maxX     float64
	objects  map[string]*BuildObject
	markers  map[string]*BuildMarker
	spawnId  string
	finishId string
	verified bool
	testing  bool
}

func (s *buildSegment) editable() bool {
	return !s.verified && !s.testing
}

func (s *buildSegment) contains(pos Vec3) bool {
	return pos.X >= s.minX && pos.X <= s.maxX && pos.Z >= -buildZRange && pos.Z <= buildZRange
}

type RelaySegment struct {
	Owner   string        `json:"owner"`
	Index   int           `json:"index"`
	Objects []BuildObject `json:"objects"`
	Markers []BuildMarker `json:"markers"`
	Spawn   Vec3          `json:"spawn"`
	Finish  Vec3          `json:"finish"`
}

type RelayMapData struct {
	Segments         []RelaySegment `json:"segments"`
	TotalCheckpoints int            `json:"totalCheckpoints"`
}

type buildingPhase struct {
	room      *Room
	segments  map[string]*buildSegment // keyed by player id
	order     []string                 // join order, drives region allocation
	timeLimit int                      // seconds; <= 0 means unlimited
	remaining int
	// votes per target: set of voter ids, idempotent per voter
	votes map[string]map[string]struct{}
	// earlyCountdown < 0 means inactive; once active it supersedes the
	// normal build timer
	earlyCountdown int
	lastSecond     time.Time
	onComplete     func(*RelayMapData)
	done           bool
}

func newBuildingPhase(room *Room, timeLimit int) *buildingPhase {
	return &buildingPhase{
		room:           room,
		segments:       make(map[string]*buildSegment),
		timeLimit:      timeLimit,
		remaining:      timeLimit,
		votes:          make(map[string]map[string]struct{}),
		earlyCountdown: -1,
	}
}

// regionBounds returns the i-th of n equal-width X intervals. The intervals
// are contiguous and centered on the world origin, so they partition the
// buildable strip with no gaps or overlaps.
func regionBounds(i, n int) (minX, maxX float64) {
	start := -float64(n) * regionWidth / 2
	minX = start + float64(i)*regionWidth
	return minX, minX + regionWidth
}

func (bp *buildingPhase) begin(now time.Time) {
	bp.lastSecond = now

	n := len(bp.room.players)
	regions := make([]RegionInfo, 0, n)
	for i, p := range bp.room.players {
		minX, maxX := regionBounds(i, n)
		bp.segments[p.id] = &buildSegment{
			owner:   p,
			minX:    minX,
			maxX:    maxX,
			objects: make(map[string]*BuildObject),
			markers: make(map[string]*BuildMarker),
		}
		bp.order = append(bp.order, p.id)
		regions = append(regions, RegionInfo{PlayerId: p.id, MinX: minX, MaxX: maxX})
	}

	bp.room.broadcast(makeEvent(EvBuildStarted, BuildStartedPayload{
		TimeLimit: bp.timeLimit,
		ZRange:    buildZRange,
		Regions:   regions,
	}))
}

// tick derives the 1 Hz countdown from the room's simulation ticks.
func (bp *buildingPhase) tick(now time.Time) {
	if bp.done || now.Sub(bp.lastSecond) < time.Second {
		return
	}
	bp.lastSecond = now

	if bp.earlyCountdown >= 0 {
		bp.earlyCountdown--
		if bp.earlyCountdown <= 0 {
			bp.complete()
			return
		}
		bp.room.broadcast(makeEvent(EvCountdown, CountdownPayload{Seconds: bp.earlyCountdown}))
		return
	}

	if bp.timeLimit <= 0 {
		return
	}

	bp.remaining--
	if bp.remaining > 0 {
		bp.room.broadcast(makeEvent(EvBuildTime, BuildTimePayload{Remaining: bp.remaining}))
		return
	}

	if bp.allVerified() {
		bp.complete()
		return
	}

	stragglers := make([]string, 0)
	for _, id := range bp.order {
		if seg, ok := bp.segments[id]; ok && !seg.verified {
			stragglers = append(stragglers, seg.owner.nickname)
		}
	}
	bp.remaining += buildExtensionSecs
	bp.room.broadcast(makeEvent(EvBuildExtended, BuildExtendedPayload{
		Added:      buildExtensionSecs,
		Remaining:  bp.remaining,
		Unverified: stragglers,
	}))
}

func (bp *buildingPhase) handle(envelope clientPacketEnvelope) {
	seg, ok := bp.segments[envelope.from.id]
	if !ok {
		bp.room.nack(envelope, ErrNoSegment)
		return
	}

	switch envelope.env.Type {
	case MsgBuildState:
		bp.handleState(envelope, seg)
	case MsgBuildObjectPlace, MsgBuildObjectUpdate:
		bp.handleObjectUpsert(envelope, seg)
	case MsgBuildObjectRemove:
		bp.handleObjectRemove(envelope, seg)
	case MsgBuildMarkerPlace, MsgBuildMarkerUpdate:
		bp.handleMarkerUpsert(envelope, seg)
	case MsgBuildMarkerRemove:
		bp.handleMarkerRemove(envelope, seg)
	case MsgBuildTestStart:
		bp.handleTestStart(envelope, seg)
	case MsgBuildTestFinish:
		bp.handleTestFinish(envelope, seg)
	case MsgBuildVoteKick:
		bp.handleVoteKick(envelope, seg)
	}
}

func (bp *buildingPhase) handleState(envelope clientPacketEnvelope, seg *buildSegment) {
	objects := make([]*BuildObject, 0, len(seg.objects))
	for _, o := range seg.objects {
		objects = append(objects, o)
	}
	markers := make([]*BuildMarker, 0, len(seg.markers))
	for _, m := range seg.markers {
		markers = append(markers, m)
	}
	bp.room.ack(envelope, BuildStatePayload{
		Region:    RegionInfo{PlayerId: envelope.from.id, MinX: seg.minX, MaxX: seg.maxX},
		Objects:   objects,
		Markers:   markers,
		Verified:  seg.verified,
		Testing:   seg.testing,
		Remaining: bp.remaining,
	})
}

func (bp *buildingPhase) handleObjectUpsert(envelope clientPacketEnvelope, seg *buildSegment) {
	if !seg.editable() {
		bp.room.nack(envelope, ErrSegmentLocked)
		return
	}
	var payload ObjectPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if !payload.Pos.IsFinite() || !payload.Rot.IsFinite() || !payload.Scale.IsFinite() {
		return
	}
	if !seg.contains(payload.Pos) {
		bp.room.nack(envelope, ErrOutOfRegion)
		return
	}

	action := "place"
	if envelope.env.Type == MsgBuildObjectUpdate {
		action = "update"
		if _, exists := seg.objects[payload.Id]; !exists {
			bp.room.nack(envelope, ErrNoSegment)
			return
		}
	} else if payload.Id == "" {
		payload.Id = uuid.NewString()
	}

	obj := &BuildObject{Id: payload.Id, Kind: payload.Kind, Pos: payload.Pos, Rot: payload.Rot, Scale: payload.Scale}
	seg.objects[payload.Id] = obj

	bp.room.ack(envelope, obj)
	bp.room.broadcast(makeEvent(EvBuildObject, BuildObjectPayload{
		PlayerId: envelope.from.id,
		Action:   action,
		Object:   obj,
	}))
}

func (bp *buildingPhase) handleObjectRemove(envelope clientPacketEnvelope, seg *buildSegment) {
	if !seg.editable() {
		bp.room.nack(envelope, ErrSegmentLocked)
		return
	}
	var payload RemovePayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if _, exists := seg.objects[payload.Id]; !exists {
		bp.room.nack(envelope, ErrNoSegment)
		return
	}
	delete(seg.objects, payload.Id)

	bp.room.ack(envelope, nil)
	bp.room.broadcast(makeEvent(EvBuildObject, BuildObjectPayload{
		PlayerId: envelope.from.id,
		Action:   "remove",
		Id:       payload.Id,
	}))
}

func (bp *buildingPhase) handleMarkerUpsert(envelope clientPacketEnvelope, seg *buildSegment) {
	if !seg.editable() {
		bp.room.nack(envelope, ErrSegmentLocked)
		return
	}
	var payload MarkerPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if !payload.Pos.IsFinite() || !isFinite(payload.RotY) {
		return
	}
	if !seg.contains(payload.Pos) {
		bp.room.nack(envelope, ErrOutOfRegion)
		return
	}

	action := "place"

	// Spawn and finish are singletons: re-placing one moves it instead of
	// adding a second. Checkpoints and killzones are unbounded.
	var marker *BuildMarker
	switch payload.Kind {
	case MARKER_SPAWN:
		if seg.spawnId != "" {
			marker = seg.markers[seg.spawnId]
			action = "update"
		}
	case MARKER_FINISH:
		if seg.finishId != "" {
			marker = seg.markers[seg.finishId]
			action = "update"
		}
	}
	if envelope.env.Type == MsgBuildMarkerUpdate && marker == nil {
		existing, exists := seg.markers[payload.Id]
		if !exists {
			bp.room.nack(envelope, ErrNoSegment)
			return
		}
		marker = existing
		action = "update"
	}

	if marker == nil {
		if payload.Id == "" {
			payload.Id = uuid.NewString()
		}
		marker = &BuildMarker{Id: payload.Id}
		seg.markers[payload.Id] = marker
		switch payload.Kind {
		case MARKER_SPAWN:
			seg.spawnId = payload.Id
		case MARKER_FINISH:
			seg.finishId = payload.Id
		}
	}
	marker.Kind = payload.Kind
	marker.Pos = payload.Pos
	marker.RotY = payload.RotY

	bp.room.ack(envelope, marker)
	bp.room.broadcast(makeEvent(EvBuildMarker, BuildMarkerPayload{
		PlayerId: envelope.from.id,
		Action:   action,
		Marker:   marker,
	}))
}

func (bp *buildingPhase) handleMarkerRemove(envelope clientPacketEnvelope, seg *buildSegment) {
	if !seg.editable() {
		bp.room.nack(envelope, ErrSegmentLocked)
		return
	}
	var payload RemovePayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if _, exists := seg.markers[payload.Id]; !exists {
		bp.room.nack(envelope, ErrNoSegment)
		return
	}
	delete(seg.markers, payload.Id)
	if seg.spawnId == payload.Id {
		seg.spawnId = ""
	}
	if seg.finishId == payload.Id {
		seg.finishId = ""
	}

	bp.room.ack(envelope, nil)
	bp.room.broadcast(makeEvent(EvBuildMarker, BuildMarkerPayload{
		PlayerId: envelope.from.id,
		Action:   "remove",
		Id:       payload.Id,
	}))
}

func (bp *buildingPhase) handleTestStart(envelope clientPacketEnvelope, seg *buildSegment) {
	if seg.verified || seg.testing {
		bp.room.nack(envelope, ErrSegmentLocked)
		return
	}
	if seg.spawnId == "" || seg.finishId == "" {
		bp.room.nack(envelope, ErrMissingMarkers)
		return
	}
	seg.testing = true

	bp.room.ack(envelope, nil)
	bp.room.broadcast(makeEvent(EvBuildTesting, BuildTestingPayload{PlayerId: envelope.from.id}))
}

func (bp *buildingPhase) handleTestFinish(envelope clientPacketEnvelope, seg *buildSegment) {
	if !seg.testing {
		bp.room.nack(envelope, ErrWrongPhase)
		return
	}
	var payload TestFinishPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	seg.testing = false
	bp.room.ack(envelope, nil)

	if !payload.Success {
		return
	}
	seg.verified = true

	bp.room.broadcast(makeEvent(EvBuildVerified, BuildVerifiedPayload{
		PlayerId:    envelope.from.id,
		AllVerified: bp.allVerified(),
	}))
	bp.checkAllVerified()
}

func (bp *buildingPhase) handleVoteKick(envelope clientPacketEnvelope, voterSeg *buildSegment) {
	if !voterSeg.verified {
		bp.room.nack(envelope, ErrVoterUnverified)
		return
	}
	var payload VoteKickPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if payload.Target == envelope.from.id {
		bp.room.nack(envelope, ErrSelfVote)
		return
	}
	targetSeg, exists := bp.segments[payload.Target]
	if !exists {
		bp.room.nack(envelope, ErrNoSegment)
		return
	}
	if targetSeg.verified {
		bp.room.nack(envelope, ErrTargetVerified)
		return
	}

	voters, ok := bp.votes[payload.Target]
	if !ok {
		voters = make(map[string]struct{})
		bp.votes[payload.Target] = voters
	}
	voters[envelope.from.id] = struct{}{}

	needed := bp.verifiedCount()/2 + 1
	bp.room.ack(envelope, nil)
	bp.room.broadcast(makeEvent(EvBuildVotes, BuildVotesPayload{
		Target: payload.Target,
		Votes:  len(voters),
		Needed: needed,
	}))

	if len(voters) >= needed {
		bp.kick(targetSeg.owner)
	}
}

func (bp *buildingPhase) kick(target *Player) {
	bp.room.log.Info().Str("player", target.id).Msg("player vote-kicked from building phase")
	bp.room.broadcast(makeEvent(EvBuildKicked, BuildKickedPayload{PlayerId: target.id}))
	// removal runs playerLeft, which drops the segment and re-checks
	// whether the remaining segments are now all verified
	bp.room.handleRemovePlayer(target)
}

func (bp *buildingPhase) playerLeft(p *Player) {
	delete(bp.segments, p.id)
	delete(bp.votes, p.id)
	for _, voters := range bp.votes {
		delete(voters, p.id)
	}
	for i, id := range bp.order {
		if id == p.id {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			break
		}
	}
	if len(bp.segments) == 0 {
		bp.done = true
		return
	}
	bp.recheckVotes()
	if bp.done {
		return
	}
	bp.checkAllVerified()
}

// recheckVotes re-applies the majority threshold to every pending tally; a
// departure can lower the needed count below votes already cast.
func (bp *buildingPhase) recheckVotes() {
	for !bp.done {
		needed := bp.verifiedCount()/2 + 1
		var target *Player
		for id, voters := range bp.votes {
			seg, ok := bp.segments[id]
			if !ok || seg.verified {
				continue
			}
			if len(voters) >= needed {
				target = seg.owner
				break
			}
		}
		if target == nil {
			return
		}
		bp.kick(target)
	}
}

func (bp *buildingPhase) verifiedCount() int {
	count := 0
	for _, seg := range bp.segments {
		if seg.verified {
			count++
		}
	}
	return count
}

func (bp *buildingPhase) allVerified() bool {
	if len(bp.segments) == 0 {
		return false
	}
	for _, seg := range bp.segments {
		if !seg.verified {
			return false
		}
	}
	return true
}

// checkAllVerified starts the shared early-start countdown once every
// remaining segment is verified.
func (bp *buildingPhase) checkAllVerified() {
	if bp.done || bp.earlyCountdown >= 0 || !bp.allVerified() {
		return
	}
	bp.earlyCountdown = earlyStartSecs
	bp.room.broadcast(makeEvent(EvCountdown, CountdownPayload{Seconds: bp.earlyCountdown}))
}

// complete assembles the relay course from the verified segments in a
// uniformly shuffled order and hands off to the registered callback.
func (bp *buildingPhase) complete() {
	if bp.done {
		return
	}
	bp.done = true

	order := make([]string, 0, len(bp.order))
	for _, id := range bp.order {
		seg := bp.segments[id]
		if seg == nil || !seg.verified || seg.spawnId == "" || seg.finishId == "" {
			continue
		}
		order = append(order, id)
	}
	bp.room.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	course := &RelayMapData{Segments: make([]RelaySegment, 0, len(order))}
	for idx, id := range order {
		seg := bp.segments[id]
		relay := RelaySegment{
			Owner:  id,
			Index:  idx,
			Spawn:  seg.markers[seg.spawnId].Pos,
			Finish: seg.markers[seg.finishId].Pos,
		}
		for _, o := range seg.objects {
			relay.Objects = append(relay.Objects, *o)
		}
		// spawn and finish become the segment's anchors, so they are
		// excluded from the extra marker list
		for mid, m := range seg.markers {
			if mid == seg.spawnId || mid == seg.finishId {
				continue
			}
			relay.Markers = append(relay.Markers, *m)
		}
		course.Segments = append(course.Segments, relay)
	}
	course.TotalCheckpoints = len(course.Segments) - 1
	if course.TotalCheckpoints < 0 {
		course.TotalCheckpoints = 0
	}

	bp.room.log.Info().Int("segments", len(course.Segments)).Msg("building phase complete")
	bp.room.broadcast(makeEvent(EvBuildCompleted, BuildCompletedPayload{
		Order:  order,
		Course: *course,
	}))

	if bp.onComplete != nil {
		bp.onComplete(course)
	}
}
