package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env       string `envconfig:"ENV" default:"local"`
	HTTPHost  string `envconfig:"HTTP_HOST" default:""`
	HTTPPort  string `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"debug"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskdeck/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskdeck/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

// PolicyEnv holds the workflow policy knobs the contract leaves to the
// operator: the verification SLA, the briefing's high-priority cut, the
// at-risk heuristic thresholds, and whether manual admin creation starts
// tasks pre-approved.
type PolicyEnv struct {
	VerificationSLA   time.Duration `envconfig:"VERIFICATION_SLA" default:"48h"`
	HighPriorityLimit int           `envconfig:"HIGH_PRIORITY_LIMIT" default:"5"`
	RiskDueSoon       time.Duration `envconfig:"RISK_DUE_SOON" default:"24h"`
	RiskProgressFloor int           `envconfig:"RISK_PROGRESS_FLOOR" default:"50"`
	ApproveOnCreate   bool          `envconfig:"APPROVE_ON_CREATE" default:"false"`
	RolloverHour      int           `envconfig:"ROLLOVER_HOUR" default:"-1"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:ops@taskdeck.dev"`
}

type Env struct {
	BaseEnv
	StorageEnv
	PolicyEnv
	VAPIDEnv
}

const namespace = "TASKDECK"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func PolicyEnvFromEnv(env *Env) *PolicyEnv {
	return &env.PolicyEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
