// Command nsx serves canned versions of the upstream services the chatbot
// talks to, for local runs without real backends.
package main

import (
	"log"
	"net/http"
	"os"
)

func main() {
	addr := ":8090"
	if v := os.Getenv("NSX_MOCK_ADDR"); v != "" {
		addr = v
	}
	corpus := defaultCorpus
	if path := os.Getenv("NSX_MOCK_CORPUS"); path != "" {
		c, err := loadCorpus(path)
		if err != nil {
			log.Fatalf("load corpus: %v", err)
		}
		corpus = c
	}
	log.Printf("NSX mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newRouter(corpus)))
}
