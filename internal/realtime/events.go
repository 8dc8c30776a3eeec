package realtime

// Server to client events.
const (
	EventConnected               = "connected"
	EventOnlineUsers             = "onlineUsers"
	EventForceLogout             = "forceLogout"
	EventPong                    = "pong"
	EventMessage                 = "message"
	EventFileDuplicate           = "file-duplicate"
	EventProcessingApproved      = "processing-approved"
	EventFileProcessingProgress  = "file-processing-progress"
	EventFileProcessingCompleted = "file-processing-completed"
	EventFileProcessingError     = "file-processing-error"
	EventStemJobCompleted        = "stem-job-completed"
	EventStemJobFailed           = "stem-job-failed"
	EventAllStemJobsCompleted    = "all-stem-jobs-completed"
)

// Client to server events.
const (
	EventPing      = "ping"
	EventJoinTrack = "join-track"
	EventJoinStage = "join-stage"
)

var defaultMessages = map[string]string{
	EventConnected:               "Connected to the notification service",
	EventOnlineUsers:             "Online users updated",
	EventForceLogout:             "You have been signed out",
	EventPong:                    "pong",
	EventMessage:                 "New message",
	EventFileDuplicate:           "This file already exists in the stage",
	EventProcessingApproved:      "File approved, audio analysis started",
	EventFileProcessingProgress:  "Processing",
	EventFileProcessingCompleted: "File processing completed",
	EventFileProcessingError:     "File processing failed",
	EventStemJobCompleted:        "Mixdown completed",
	EventStemJobFailed:           "Mixdown failed",
	EventAllStemJobsCompleted:    "All stems processed",
}

// Payload is the structured body of an event. The registry stamps a timestamp
// and a human readable message on every payload it delivers.
type Payload map[string]any

// Frame is the JSON unit exchanged on the socket in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func UserRoom(userID string) string {
	return "user:" + userID
}

func TrackRoom(trackID string) string {
	return "track:" + trackID
}

func StageRoom(stageID string) string {
	return "stage:" + stageID
}
