package properties

import (
	"os"
	"strconv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func BoundaryFile() string {
	if v := os.Getenv("BOUNDARY_FILE"); v != "" {
		return v
	}
	return RootPath() + "/data/boundaries/regions.geojson"
}

func ScenesDir() string {
	if v := os.Getenv("SCENES_DIR"); v != "" {
		return v
	}
	return RootPath() + "/data/scenes"
}

func TileURLTemplate() string {
	if v := os.Getenv("TILE_URL_TEMPLATE"); v != "" {
		return v
	}
	return "https://tiles.terralens.dev/annual/{year}/{z}/{x}/{y}.png?min={min}&max={max}&gamma={gamma}"
}

func ReflectanceScale() float64 {
	return getEnvFloat("REFLECTANCE_SCALE", 0.0000275)
}

func ReflectanceOffset() float64 {
	return getEnvFloat("REFLECTANCE_OFFSET", -0.2)
}

// Bit positions within the QA band. Defaults match the Landsat Collection 2
// QA_PIXEL encoding; other sensors override via environment.
func CloudBit() int {
	return getEnvInt("PIXEL_QUALITY_CLOUD_BIT", 3)
}

func ShadowBit() int {
	return getEnvInt("PIXEL_QUALITY_SHADOW_BIT", 4)
}

func MaskWorkers() int {
	return getEnvInt("MASK_WORKERS", 8)
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
