package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"log/slog"

	"doc-ingest-backend/config"
	"doc-ingest-backend/middleware"
)

func generateGatewaySecret() (string, error) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// 不带参数生成网关签名密钥；-owner 为指定owner签发身份断言，模拟网关调试用
func main() {
	ownerID := flag.String("owner", "", "mint an identity token for this owner id")
	flag.Parse()

	if *ownerID == "" {
		secret, err := generateGatewaySecret()
		if err != nil {
			slog.Error("Error generating secret", "err", err)
			return
		}
		slog.Info("Generated gateway secret:", "secret", secret)
		return
	}

	config.MustLoad()
	token, err := middleware.GenerateToken(*ownerID)
	if err != nil {
		slog.Error("Error generating token", "err", err)
		return
	}
	slog.Info("Generated identity token:", "owner_id", *ownerID, "token", token)
}
