package normalizer

import (
	botModels "github.com/go-telegram/bot/models"
)

// MediaKind 媒体类型标签
// 转发分发对其做完全匹配，而不是逐字段探测
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaSticker   MediaKind = "sticker"
)

// Media 消息携带的媒体引用
type Media struct {
	Kind   MediaKind
	FileID string
}

// Native 该媒体类型能否走原生发送接口重发
// 未知类型（历史留痕可能带着当时未覆盖的标签）走通用复制兜底
func (m Media) Native() bool {
	switch m.Kind {
	case MediaPhoto, MediaVideo, MediaDocument, MediaAudio, MediaVoice, MediaVideoNote, MediaSticker:
		return true
	default:
		return false
	}
}

// SupportsCaption 该媒体类型重发时能否附带文字说明
func (m Media) SupportsCaption() bool {
	switch m.Kind {
	case MediaPhoto, MediaVideo, MediaDocument, MediaAudio, MediaVoice:
		return true
	default:
		return false
	}
}

// extractMedia 从原始消息提取媒体引用
// 照片取最大尺寸的 file_id
func extractMedia(m *botModels.Message) Media {
	switch {
	case len(m.Photo) > 0:
		return Media{Kind: MediaPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}
	case m.Video != nil:
		return Media{Kind: MediaVideo, FileID: m.Video.FileID}
	case m.Document != nil:
		return Media{Kind: MediaDocument, FileID: m.Document.FileID}
	case m.Audio != nil:
		return Media{Kind: MediaAudio, FileID: m.Audio.FileID}
	case m.Voice != nil:
		return Media{Kind: MediaVoice, FileID: m.Voice.FileID}
	case m.VideoNote != nil:
		return Media{Kind: MediaVideoNote, FileID: m.VideoNote.FileID}
	case m.Sticker != nil:
		return Media{Kind: MediaSticker, FileID: m.Sticker.FileID}
	default:
		return Media{}
	}
}
