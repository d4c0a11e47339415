package protocol

// NotificationName identifies an inbound mex notification by its op_name.
type NotificationName string

const (
	NotificationAdminPromote NotificationName = "NotificationNewsletterAdminPromote"
	NotificationAdminDemote  NotificationName = "NotificationNewsletterAdminDemote"
	NotificationUpdate       NotificationName = "NotificationNewsletterUpdate"
)

// XWAPath is the top-level key under "data" in a mex JSON response.
type XWAPath string

const (
	PathAdminPromote   XWAPath = "xwa2_notify_newsletter_admin_promote"
	PathAdminDemote    XWAPath = "xwa2_notify_newsletter_admin_demote"
	PathAdminCount     XWAPath = "xwa2_newsletter_admin"
	PathCreate         XWAPath = "xwa2_newsletter_create"
	PathNewsletter     XWAPath = "xwa2_newsletter"
	PathMetadataUpdate XWAPath = "xwa2_notify_newsletter_on_metadata_update"
)

// QueryID is a mex persisted-query id. Values are pinned to the remote
// protocol version and must never be derived.
type QueryID string

const (
	QueryJobMutation QueryID = "7150902998257522"
	QueryMetadata    QueryID = "6620195908089573"
	QueryUnfollow    QueryID = "7238632346214362"
	QueryFollow      QueryID = "7871414976211147"
	QueryUnmute      QueryID = "7337137176362961"
	QueryMute        QueryID = "25151904754424642"
	QueryCreate      QueryID = "6996806640408138"
	QueryAdminCount  QueryID = "7130823597031706"
	QueryChangeOwner QueryID = "7341777602580933"
	QueryDelete      QueryID = "8316537688363079"
	QueryDemote      QueryID = "6551828931592903"
)

var queryNames = map[QueryID]string{
	QueryJobMutation: "job_mutation",
	QueryMetadata:    "metadata",
	QueryUnfollow:    "unfollow",
	QueryFollow:      "follow",
	QueryUnmute:      "unmute",
	QueryMute:        "mute",
	QueryCreate:      "create",
	QueryAdminCount:  "admin_count",
	QueryChangeOwner: "change_owner",
	QueryDelete:      "delete",
	QueryDemote:      "demote",
}

var notificationPaths = map[NotificationName]XWAPath{
	NotificationAdminPromote: PathAdminPromote,
	NotificationAdminDemote:  PathAdminDemote,
	NotificationUpdate:       PathMetadataUpdate,
}

// Known reports whether q is one of the registry's query ids.
func (q QueryID) Known() bool {
	_, ok := queryNames[q]
	return ok
}

// Name returns the logical operation name, or "unknown".
func (q QueryID) Name() string {
	if name, ok := queryNames[q]; ok {
		return name
	}
	return "unknown"
}

// Path returns the data key a notification's payload is nested under.
func (n NotificationName) Path() (XWAPath, bool) {
	p, ok := notificationPaths[n]
	return p, ok
}

// MetadataPath selects the create or fetch result key.
func MetadataPath(isCreate bool) XWAPath {
	if isCreate {
		return PathCreate
	}
	return PathNewsletter
}
