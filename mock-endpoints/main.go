package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
)

var (
	requestCount atomic.Int64
	risingHits   atomic.Int64
	flakyHits    atomic.Int64
)

const pageTemplate = `<!doctype html>
<html>
<head><title>%[1]s</title></head>
<body>
  <h1>%[1]s</h1>
  <img class="product-image" src="/images/%[2]s.png" alt="%[1]s">
  %[3]s
  <p class="availability">%[4]s</p>
</body>
</html>`

func writePage(w http.ResponseWriter, name, slug, priceHTML, availability string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, pageTemplate, name, slug, priceHTML, availability)
}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	// Stable product, price never changes
	http.HandleFunc("/product/stable", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 200)
		writePage(w, "Steel Kettle", "kettle", `<span class="price">£ 25.00</span>`, "In stock")
	})

	// Rising product, £1.00 dearer on every request
	http.HandleFunc("/product/rising", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		hit := risingHits.Add(1)
		logRequest(r, count, 200)
		price := fmt.Sprintf(`<span class="price">£ %d.00</span>`, 9+hit)
		writePage(w, "Cast Iron Pan", "pan", price, "In stock")
	})

	// Sale product, was and now prices both on the page
	http.HandleFunc("/product/sale", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 200)
		price := `<s class="price">£ 1,040.00</s> <span class="price">£ 899.99</span>`
		writePage(w, "Stand Mixer", "mixer", price, "Only 2 left")
	})

	// Out of stock product
	http.HandleFunc("/product/out-of-stock", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 200)
		writePage(w, "Copper Pot", "pot", `<span class="price">£ 60.00</span>`, "Out of stock")
	})

	// Flaky product, every other request returns 503
	http.HandleFunc("/product/flaky", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		if flakyHits.Add(1)%2 == 1 {
			logRequest(r, count, 503)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		logRequest(r, count, 200)
		writePage(w, "Toaster", "toaster", `<span class="price">£ 35.50</span>`, "In stock")
	})

	// Failing product, always returns 500
	http.HandleFunc("/product/fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 500)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	})

	// Stats endpoint, shows request counts
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"total_requests":  requestCount.Load(),
			"rising_requests": risingHits.Load(),
			"flaky_requests":  flakyHits.Load(),
		})
	})

	log.Printf("Mock shop server starting on :%s", port)
	log.Printf("  GET /product/stable        -> £ 25.00")
	log.Printf("  GET /product/rising        -> £1.00 more each request")
	log.Printf("  GET /product/sale          -> was/now prices")
	log.Printf("  GET /product/out-of-stock  -> unavailable")
	log.Printf("  GET /product/flaky         -> 503 every other request")
	log.Printf("  GET /product/fail          -> 500 Error")
	log.Printf("  GET /stats                 -> request counts")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, status int) {
	fmt.Printf("[#%d] %s %s -> %d | ua=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		truncate(r.UserAgent(), 24),
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
