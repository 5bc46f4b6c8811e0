package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
const (
	fieldContact      = "contact"
	fieldAccountID    = "account_id"
	fieldProfileID    = "profile_id"
	fieldPurpose      = "purpose"
	fieldChannel      = "channel"
	fieldName         = "name"
	fieldPasswordHash = "password_hash"
	fieldRole         = "role"
	fieldAssetKey     = "asset_key"
	fieldOTPCode      = "otp_code"
	fieldOTPExpiresAt = "otp_expires_at"
	fieldTwoFactor    = "two_factor"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"

	indexAccountID = "account_id-index"
)
