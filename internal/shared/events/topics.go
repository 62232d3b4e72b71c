package events

// Topics del pipeline de vídeo. El servicio de subida/transcodificación vive
// fuera de este backend; aquí solo se consumen/producen estos topics.
const (
	TopicVideoUploaded    = "video.uploaded"
	TopicVideoTranscoded  = "video.transcoded"
	TopicVideoTranscribed = "video.transcribed"
	TopicVideoSummarized  = "video.summarized"
	TopicVideoIndexed     = "video.indexed"
	TopicVideoFailed      = "video.failed"
)
