// Command issuetoken prints a bearer token the chat adapter uses to act as
// a member in a guild.
package main

import (
	"flag"
	"fmt"
	"log"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/model"
	jwtpkg "joinus/partyboard/pkg/jwt"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	memberID := flag.String("member", "", "acting member id")
	guildID := flag.String("guild", "", "guild id")
	flag.Parse()

	if !model.ValidSnowflake(*memberID) || !model.ValidSnowflake(*guildID) {
		log.Fatal("-member and -guild must be snowflake ids")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	m := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	token, err := m.GenerateAccessToken(*memberID, *guildID)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
