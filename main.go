package main

import (
	"github.com/inkpress/account_service/config"
	"github.com/inkpress/account_service/internal/api"
)

func main() {
	cfg := config.LoadConfig()
	api.StartServer(cfg)
}
