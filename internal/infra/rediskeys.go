package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "fraudfusion"
)

// Ключи артефактов моделей
const (
	RedisKeyArtifacts   = RedisNamespace + ":artifacts:"
	RedisKeyLockPublish = RedisNamespace + ":lock:publish"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanAlerts — мошеннические решения для подписчиков (SOC, антифрод-аналитики).
	RedisChanAlerts = RedisNamespace + ":alerts"
	// RedisChanArtifactReload — сигнал шлюзам перечитать артефакты.
	RedisChanArtifactReload = RedisNamespace + ":artifacts:reload"
)

// ArtifactModelKey — ключ сериализованной модели агента по умолчанию.
func ArtifactModelKey(agent string) string {
	return RedisKeyArtifacts + agent + ":model"
}

func ArtifactSchemaKey(agent string) string {
	return RedisKeyArtifacts + agent + ":schema"
}
