package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"gitlab.com/dirk.krummacker/personas-service/pkg/model"
)

// Usage example on the command line:
// > go run main.go -url http://localhost:8080/api
func main() {
	baseURL := flag.String("url", "http://localhost:8080/api", "base URL of the personas REST API")
	flag.Parse()

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{1000, 5000, 10000, 50000, 100000}
	for run, loops := range sizes {
		prefix := fmt.Sprintf("bench-%d-%d", time.Now().Unix(), run)
		fmt.Printf("%10d", loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				id := fmt.Sprintf("%s-%d", prefix, i)
				duration += sendRequest(http.MethodPost, *baseURL+"/personas", personaBody(id, "Marcus Antonius"))
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id string) int64 {
				return sendRequest(http.MethodPut, *baseURL+"/personas/"+id, personaBody(id, "Octavia Minor"))
			}
			callInLoop(prefix, loops, f)
		}
		{
			// GET requests
			f := func(id string) int64 {
				return sendRequest(http.MethodGet, *baseURL+"/personas/"+id, nil)
			}
			callInLoop(prefix, loops, f)
		}
		{
			// DELETE requests
			f := func(id string) int64 {
				return sendRequest(http.MethodDelete, *baseURL+"/personas/"+id, nil)
			}
			callInLoop(prefix, loops, f)
		}
		fmt.Println()
	}
}

func personaBody(id string, name string) io.Reader {
	phone := "+39 999 777 555"
	secret := "SPQR"
	body, err := json.Marshal(model.Persona{Id: &id, Name: &name, Secret: &secret, Phone: &phone})
	if err != nil {
		fmt.Println("could not marshal JSON", err)
		panic(err)
	}
	return bytes.NewReader(body)
}

func callInLoop(prefix string, loops int, f func(id string) int64) {
	ids := createRandomSliceWithIDs(prefix, loops)
	var duration int64
	for _, id := range ids {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(loops*1000))
}

func createRandomSliceWithIDs(prefix string, loops int) []string {
	ids := make([]string, 0, loops)
	for i := 0; i < loops; i++ {
		ids = append(ids, fmt.Sprintf("%s-%d", prefix, i))
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

// sendRequest executes the request and returns its duration in nanoseconds.
func sendRequest(method string, requestURL string, bodyReader io.Reader) int64 {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	if _, err := io.ReadAll(res.Body); err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	return after - before
}
