// Package config provides configuration loading for the telcine server.
//
// Configuration is layered: built-in defaults, then an optional
// telcine.yaml file, then TELCINE_* environment variables. Command-line
// flags are applied on top by the cmd package.
//
// # Configuration File Structure
//
//	listen: ":9001"
//	movie: "movies/demo.txt"
//	max_sessions: 100
//	write_timeout: 30s
//
//	ops:
//	  enabled: true
//	  address: ":9090"
//
//	log:
//	  level: info
//	  format: text
//
//	notify:
//	  smtp:
//	    host: smtp.example.com
//	    username: projector@example.com
//	    password: hunter2
//	    to: owner@example.com
//	  mqtt:
//	    broker_url: tcp://broker.example.com:1883
//	    topic: telcine/viewers
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listen:", cfg.Listen)
package config
