package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "STOREFRONT_APP_ENV"
	EnvPort                   = "STOREFRONT_APP_PORT"
	EnvDBDSN                  = "STOREFRONT_DB_DSN"
	EnvDBHost                 = "STOREFRONT_DB_HOST"
	EnvDBUser                 = "STOREFRONT_DB_USER"
	EnvDBName                 = "STOREFRONT_DB_NAME"
	EnvRedisURL               = "STOREFRONT_REDIS_URL"
	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvPayFastMerchantID      = "STOREFRONT_PAYFAST_MERCHANT_ID"
	EnvPayFastMerchantKey     = "STOREFRONT_PAYFAST_MERCHANT_KEY"
	EnvPayFastReturnURL       = "STOREFRONT_PAYFAST_RETURN_URL"
	EnvPayFastCancelURL       = "STOREFRONT_PAYFAST_CANCEL_URL"
	EnvPayFastNotifyURL       = "STOREFRONT_PAYFAST_NOTIFY_URL"
	EnvPaymentRateLimit       = "STOREFRONT_PAYMENT_RATE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
