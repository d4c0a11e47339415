package newsletter

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
)

type State string

const (
	StateActive       State = "ACTIVE"
	StateGeosuspended State = "GEOSUSPENDED"
	StateSuspended    State = "SUSPENDED"
)

func (s State) Valid() bool {
	switch s {
	case StateActive, StateGeosuspended, StateSuspended:
		return true
	}
	return false
}

type Verification string

const (
	Verified   Verification = "VERIFIED"
	Unverified Verification = "UNVERIFIED"
)

func (v Verification) Valid() bool {
	return v == Verified || v == Unverified
}

type ReactionMode string

const (
	ReactionAll   ReactionMode = "ALL"
	ReactionBasic ReactionMode = "BASIC"
	ReactionNone  ReactionMode = "NONE"
)

func (m ReactionMode) Valid() bool {
	switch m {
	case ReactionAll, ReactionBasic, ReactionNone:
		return true
	}
	return false
}

type MuteState string

const (
	MuteOn        MuteState = "ON"
	MuteOff       MuteState = "OFF"
	MuteUndefined MuteState = "UNDEFINED"
)

type ViewRole string

const (
	RoleAdmin      ViewRole = "ADMIN"
	RoleGuest      ViewRole = "GUEST"
	RoleOwner      ViewRole = "OWNER"
	RoleSubscriber ViewRole = "SUBSCRIBER"
)

// ViewerMetadata is the querying identity's relationship to a channel. It is
// scoped to that identity and must not be shared across accounts.
type ViewerMetadata struct {
	Mute     MuteState `json:"mute"`
	ViewRole ViewRole  `json:"view_role"`
}

// Metadata describes one channel as seen by the querying identity.
type Metadata struct {
	ID              string         `json:"id"`
	State           State          `json:"state"`
	CreationTime    int64          `json:"creation_time"`
	Name            string         `json:"name"`
	NameTime        int64          `json:"nameTime"`
	Description     string         `json:"description"`
	DescriptionTime int64          `json:"descriptionTime"`
	Invite          string         `json:"invite"`
	Handle          *string        `json:"handle"`
	Picture         *string        `json:"picture"`
	Preview         *string        `json:"preview"`
	ReactionCodes   *ReactionMode  `json:"reaction_codes,omitempty"`
	Subscribers     int64          `json:"subscribers"`
	Verification    Verification   `json:"verification"`
	ViewerMetadata  ViewerMetadata `json:"viewer_metadata"`
}

func (m *Metadata) Created() time.Time {
	return time.Unix(m.CreationTime, 0)
}

// Reaction is one emoji tally on a channel message.
type Reaction struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// FetchedUpdate is one item of a fetched message or update list. Message is
// set only for items fetched in FetchMessages mode.
type FetchedUpdate struct {
	ServerID  string                `json:"server_id"`
	Origin    types.JID             `json:"origin"`
	Views     int64                 `json:"views"`
	Reactions []Reaction            `json:"reactions"`
	Message   *waWeb.WebMessageInfo `json:"message,omitempty"`
}

// Identity carries the local account ids the decryptor needs as context.
// LID is empty when the account has no linked id.
type Identity struct {
	ID  types.JID
	LID types.JID
}
