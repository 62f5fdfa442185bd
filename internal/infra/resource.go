package infra

import (
	"fmt"
	"os"
)

// LoadResource возвращает содержимое артефакта из ENV (для Docker/K8s, где файл не смонтирован)
// или из файла по пути из конфига. ENV имеет приоритет.
func LoadResource(path string, envDataKey string) ([]byte, error) {
	// Если артефакт прилетел напрямую в ENV
	if envDataKey != "" {
		if data := os.Getenv(envDataKey); data != "" {
			return []byte(data), nil
		}
	}
	// Иначе читаем файл по пути из конфига
	if path == "" {
		return nil, fmt.Errorf("no path configured and %s is empty", envDataKey)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}
