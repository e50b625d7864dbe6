package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/guardshare/internal/flagx"
	"github.com/dmitrijs2005/guardshare/internal/timex"
)

// JsonRateLimit is the JSON form of RateLimit.
type JsonRateLimit struct {
	Requests int            `json:"requests"`
	Window   timex.Duration `json:"window"`
}

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// Fields absent from the file keep the values already present in Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	StorageBackend              string         `json:"storage_backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	PresignValidityDuration     timex.Duration `json:"presign_validity_duration"`
	RedisAddr                   string         `json:"redis_addr"`
	SweepInterval               timex.Duration `json:"sweep_interval"`
	PurgeInactiveAfter          timex.Duration `json:"purge_inactive_after"`
	IdentityCacheSize           int            `json:"identity_cache_size"`
	IdentityCacheTTL            timex.Duration `json:"identity_cache_ttl"`
	RateLimitGeneral            *JsonRateLimit `json:"rate_limit_general"`
	RateLimitAuth               *JsonRateLimit `json:"rate_limit_auth"`
	RateLimitUpload             *JsonRateLimit `json:"rate_limit_upload"`
	LogLevel                    string         `json:"log_level"`
	AdminUserName               string         `json:"admin_username"`
	AdminPassword               string         `json:"admin_password"`
	TrustedProxies              []string       `json:"trusted_proxies"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Without the flag nothing is loaded. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AdminUserName, c.AdminUserName)
	setString(&config.AdminPassword, c.AdminPassword)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.PresignValidityDuration.Duration > 0 {
		config.PresignValidityDuration = c.PresignValidityDuration.Duration
	}
	if c.SweepInterval.Duration > 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.PurgeInactiveAfter.Duration > 0 {
		config.PurgeInactiveAfter = c.PurgeInactiveAfter.Duration
	}
	if c.IdentityCacheSize > 0 {
		config.IdentityCacheSize = c.IdentityCacheSize
	}
	if c.IdentityCacheTTL.Duration > 0 {
		config.IdentityCacheTTL = c.IdentityCacheTTL.Duration
	}

	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}

	setRateLimit(&config.RateLimitGeneral, c.RateLimitGeneral)
	setRateLimit(&config.RateLimitAuth, c.RateLimitAuth)
	setRateLimit(&config.RateLimitUpload, c.RateLimitUpload)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setRateLimit(dst *RateLimit, v *JsonRateLimit) {
	if v == nil {
		return
	}
	if v.Requests > 0 {
		dst.Requests = v.Requests
	}
	if v.Window.Duration > 0 {
		dst.Window = v.Window.Duration
	}
}
