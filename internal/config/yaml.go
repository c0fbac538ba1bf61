package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSectionMissing is returned when a YAML document has no mapping under the requested key.
var ErrSectionMissing = errors.New("config section missing")

// LoadDocument reads a YAML file and returns the whole document as a mapping.
// Keys are returned exactly as written. A missing file yields an error that
// matches fs.ErrNotExist; YAML syntax errors are returned as produced by the decoder.
func LoadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSection returns the mapping stored under key, e.g. "database".
func LoadSection(path, key string) (map[string]any, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	section, ok := doc[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrSectionMissing, key, path)
	}
	return section, nil
}

// DatabaseDSN builds a postgres URL from a DBNAME/DBUSER/DBPASSWORD/DBHOST/DBPORT section.
func DatabaseDSN(section map[string]any) (string, error) {
	name, user, host := str(section["DBNAME"]), str(section["DBUSER"]), str(section["DBHOST"])
	if name == "" || user == "" || host == "" {
		return "", errors.New("DBNAME, DBUSER and DBHOST are required")
	}
	port := str(section["DBPORT"])
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, str(section["DBPASSWORD"])),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	return u.String(), nil
}

// APICredentialsFrom maps a READ_API_KEY/POST_API_KEY/API_BASE_URL/CONTENT_TYPE document.
func APICredentialsFrom(doc map[string]any) APICredentials {
	return APICredentials{
		ReadKey:     str(doc["READ_API_KEY"]),
		PostKey:     str(doc["POST_API_KEY"]),
		BaseURL:     str(doc["API_BASE_URL"]),
		ContentType: str(doc["CONTENT_TYPE"]),
	}
}

// MQTTCredentialsFrom maps a CLOUD_SERVICE_URL/USERNAME/PASSWORD document.
// A bare host is turned into a TLS broker URL on port 8883.
func MQTTCredentialsFrom(doc map[string]any) (broker, username, password string) {
	broker = str(doc["CLOUD_SERVICE_URL"])
	if broker != "" && !strings.Contains(broker, "://") {
		if _, _, err := net.SplitHostPort(broker); err != nil {
			broker = net.JoinHostPort(broker, "8883")
		}
		broker = "ssl://" + broker
	}
	return broker, str(doc["USERNAME"]), str(doc["PASSWORD"])
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
