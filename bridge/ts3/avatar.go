package ts3

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var supportedAvatarExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
}

// PickAvatarFile returns the lexicographically first supported image file in
// dir, or "" if none qualifies.
func PickAvatarFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read avatar dir: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if supportedAvatarExt[strings.ToLower(filepath.Ext(e.Name()))] {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Strings(candidates)
	return filepath.Join(dir, candidates[0]), nil
}

// AvatarMD5 hashes the file contents, which also doubles as the upload path
// suffix (`/avatar_<md5hex>`).
func AvatarMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// AvatarUploadPath is the TS3 filetransfer destination path for an avatar
// with the given hash, always rooted in channel 0.
func AvatarUploadPath(md5hex string) string {
	return fmt.Sprintf("/avatar_%s", md5hex)
}

// UploadSession drives one TS3 filetransfer upload. The real protocol opens
// a second TCP connection keyed by a server-issued transfer ID/port after an
// "ftinitupload" query command; this models that handshake's data-plane
// leg, which is what the event loop actually needs to drive bytes across.
type UploadSession struct {
	conn net.Conn
}

// DialUpload connects to the filetransfer port the server returned in its
// ftinitupload reply.
func DialUpload(host string, port int) (*UploadSession, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("dial filetransfer: %w", err)
	}
	return &UploadSession{conn: conn}, nil
}

// SendFile streams the file transfer key followed by the file bytes, the
// shape the real filetransfer protocol expects on the data connection.
func (s *UploadSession) SendFile(transferKey string, path string) error {
	if _, err := s.conn.Write([]byte(transferKey)); err != nil {
		return fmt.Errorf("write transfer key: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open avatar file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(s.conn, f); err != nil {
		return fmt.Errorf("upload avatar bytes: %w", err)
	}
	return nil
}

func (s *UploadSession) Close() error {
	return s.conn.Close()
}
