package config

const EnvPrefix = "REFERRALZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "REFERRALZ_APP_ENV"
	EnvPort     = "REFERRALZ_APP_PORT"
	EnvLogLevel = "REFERRALZ_LOG_LEVEL"

	EnvDBDSN  = "REFERRALZ_DB_DSN"
	EnvDBHost = "REFERRALZ_DB_HOST"
	EnvDBUser = "REFERRALZ_DB_USER"
	EnvDBName = "REFERRALZ_DB_NAME"

	EnvRedisURL = "REFERRALZ_REDIS_URL"

	EnvReferralBaseReward      = "REFERRALZ_REFERRAL_BASE_REWARD"
	EnvReferralCooldown        = "REFERRALZ_REFERRAL_COOLDOWN"
	EnvReferralDecayStep       = "REFERRALZ_REFERRAL_DECAY_STEP"
	EnvReferralTrustBucketSize = "REFERRALZ_REFERRAL_TRUST_BUCKET_SIZE"

	EnvSettlementInterval = "REFERRALZ_SETTLEMENT_INTERVAL"

	EnvCORSAllowedOrigins = "REFERRALZ_CORS_ALLOWED_ORIGINS"

	EnvGCPProjectID         = "REFERRALZ_GCP_PROJECT_ID"
	EnvPubSubReferralsTopic = "REFERRALZ_PUBSUB_REFERRALS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
