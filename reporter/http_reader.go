// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) get(route string) (string, error) {
	url := "http://" + hr.serverIP + ":" + hr.serverPort + route

	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) GetHello() (string, error) {
	return hr.get(ROUTE_HELLO)
}

func (hr *HttpReader) GetVersion() (string, error) {
	return hr.get(ROUTE_VERSION)
}

func (hr *HttpReader) GetRequest(requestId string) (string, error) {
	return hr.get(ROUTE_REQUEST + "?id=" + requestId)
}

func (hr *HttpReader) GetReceipt(requestId string) (string, error) {
	return hr.get(ROUTE_RECEIPT + "?id=" + requestId)
}

func (hr *HttpReader) GetFees(token string) (string, error) {
	return hr.get(ROUTE_FEES + "?token=" + token)
}

func (hr *HttpReader) GetJournal(since string) (string, error) {
	return hr.get(ROUTE_JOURNAL + "?since=" + since)
}
