package models

import (
	"encoding/json"
	"time"

	"tremo/internal/storage/sqlc"
)

// ジョブタイプ（リモートランナーに委譲する処理の種類）
const (
	JobTypeVODWebVideoTranscoding   = "vod-web-video-transcoding"
	JobTypeVODHLSTranscoding        = "vod-hls-transcoding"
	JobTypeVODAudioMergeTranscoding = "vod-audio-merge-transcoding"
	JobTypeLiveRTMPHLSTranscoding   = "live-rtmp-hls-transcoding"
	JobTypeVideoStudioTranscoding   = "video-studio-transcoding"
	JobTypeVideoTranscription       = "video-transcription"
)

// ジョブステータス
const (
	JobStatePending    = "pending"
	JobStateProcessing = "processing"
	JobStateCompleting = "completing"
	JobStateCompleted  = "completed"
	JobStateErrored    = "errored"
	JobStateCancelled  = "cancelled"
)

// ジョブ優先度（大きいほど先にクレームされる）
const (
	JobPriorityDefault = 0
	// 親ジョブ完了後に続く子ジョブは新規ジョブより優先する
	JobPriorityChildBonus = 1
)

// JobTypes は既知のジョブタイプ一覧
var JobTypes = []string{
	JobTypeVODWebVideoTranscoding,
	JobTypeVODHLSTranscoding,
	JobTypeVODAudioMergeTranscoding,
	JobTypeLiveRTMPHLSTranscoding,
	JobTypeVideoStudioTranscoding,
	JobTypeVideoTranscription,
}

// KnownJobType は既知のジョブタイプかどうかを判定
func KnownJobType(t string) bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// KnownJobState は既知のジョブステータスかどうかを判定
func KnownJobState(s string) bool {
	switch s {
	case JobStatePending, JobStateProcessing, JobStateCompleting,
		JobStateCompleted, JobStateErrored, JobStateCancelled:
		return true
	}
	return false
}

// Resolution はトランスコード出力の解像度指定
type Resolution struct {
	Height int `json:"height"`
	FPS    int `json:"fps,omitempty"`
}

// VODWebVideoPayload はWeb動画トランスコードジョブの入力
type VODWebVideoPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Output Resolution `json:"output"`
}

// VODHLSPayload はHLSトランスコードジョブの入力
type VODHLSPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Output struct {
		Resolution
		SeparatedAudio bool `json:"separatedAudio,omitempty"`
	} `json:"output"`
}

// VODAudioMergePayload は音声と静止画のマージジョブの入力
type VODAudioMergePayload struct {
	Input struct {
		AudioFileURL   string `json:"audioFileUrl"`
		PreviewFileURL string `json:"previewFileUrl"`
	} `json:"input"`
	Output Resolution `json:"output"`
}

// LiveRTMPHLSPayload はライブ配信HLSトランスコードジョブの入力
type LiveRTMPHLSPayload struct {
	Input struct {
		RTMPURL string `json:"rtmpUrl"`
	} `json:"input"`
	Output struct {
		ToTranscode     []Resolution `json:"toTranscode"`
		SegmentDuration int          `json:"segmentDuration"`
		SegmentListSize int          `json:"segmentListSize"`
	} `json:"output"`
}

// StudioTask は動画編集ジョブの個々のタスク
type StudioTask struct {
	Name    string          `json:"name"`
	Options json.RawMessage `json:"options,omitempty"`
}

// VideoStudioPayload は動画編集レンダリングジョブの入力
type VideoStudioPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Tasks []StudioTask `json:"tasks"`
}

// TranscriptionPayload は文字起こしジョブの入力
type TranscriptionPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
}

// JobPrivatePayload はサーバー側だけが参照するジョブのコンテキスト
// ランナーには送信しない
type JobPrivatePayload struct {
	VideoUUID string `json:"videoUuid"`
	IsNewVideo bool  `json:"isNewVideo,omitempty"`
	// Web動画ジョブの完了後に連鎖させるHLSジョブの出力指定
	ChainHLS []Resolution `json:"chainHls,omitempty"`
}

// TranscriptionResult は文字起こしジョブの結果本文
type TranscriptionResult struct {
	InputLanguage string `json:"inputLanguage,omitempty"`
}

// JobView はAPIレスポンス用のジョブ表現
// processingJobTokenとprivate_payloadは外部に出さない
type JobView struct {
	UUID       string          `json:"uuid"`
	Type       string          `json:"type"`
	State      string          `json:"state"`
	Payload    json.RawMessage `json:"payload"`
	Result     json.RawMessage `json:"result,omitempty"`
	Priority   int64           `json:"priority"`
	Progress   *int64          `json:"progress,omitempty"`
	Failures   int64           `json:"failures"`
	Error      string          `json:"error,omitempty"`
	RunnerID   string          `json:"runnerId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// NewJobView はストレージ行からJobViewを作成
func NewJobView(job *sqlc.RunnerJob) *JobView {
	v := &JobView{
		UUID:       job.Uuid,
		Type:       job.Type,
		State:      job.State,
		Payload:    json.RawMessage(job.Payload),
		Priority:   job.Priority,
		Progress:   job.Progress,
		Failures:   job.Failures,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Result != nil {
		v.Result = json.RawMessage(*job.Result)
	}
	if job.Error != nil {
		v.Error = *job.Error
	}
	if job.RunnerID != nil {
		v.RunnerID = *job.RunnerID
	}
	return v
}

// NewJobViews はストレージ行のスライスをJobViewに変換
func NewJobViews(jobs []sqlc.RunnerJob) []*JobView {
	views := make([]*JobView, len(jobs))
	for i := range jobs {
		views[i] = NewJobView(&jobs[i])
	}
	return views
}
