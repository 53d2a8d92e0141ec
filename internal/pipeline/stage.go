// Package pipeline tracks which stage of Upload, Analyze and View a session is in.
package pipeline

import (
	"github.com/gwlsn/hawkeye/internal/trajectory"
	"github.com/gwlsn/hawkeye/internal/upload"
)

// Stage identifies the active pipeline stage
type Stage string

const (
	StageEmpty     Stage = "empty"
	StageUploaded  Stage = "uploaded"
	StageAnalyzing Stage = "analyzing"
	StageAnalyzed  Stage = "analyzed"
)

// State is the payload of one stage. Only the types below implement it.
type State interface {
	Stage() Stage
	video() *upload.Video
}

// Empty has nothing uploaded
type Empty struct{}

// Uploaded holds a video ready for analysis
type Uploaded struct {
	Video *upload.Video
}

// Analyzing holds the video and the job generating its trajectory
type Analyzing struct {
	Video *upload.Video
	JobID string
}

// Analyzed holds the finished analysis, ready to view
type Analyzed struct {
	Video    *upload.Video
	JobID    string
	Analysis *trajectory.Analysis
}

func (Empty) Stage() Stage     { return StageEmpty }
func (Uploaded) Stage() Stage  { return StageUploaded }
func (Analyzing) Stage() Stage { return StageAnalyzing }
func (Analyzed) Stage() Stage  { return StageAnalyzed }

func (Empty) video() *upload.Video       { return nil }
func (s Uploaded) video() *upload.Video  { return s.Video }
func (s Analyzing) video() *upload.Video { return s.Video }
func (s Analyzed) video() *upload.Video  { return s.Video }
