// Package remote provides the Fetcher's upstream transport: a session to
// the calendar-hierarchy file server, and the lazy Walker that produces
// candidate file paths from it in non-decreasing observation-time order.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DirEntry is one listed directory entry: a bucket, or a candidate file.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Client is the capability set the Walker and Fetcher need from the
// upstream file server: list directory entries and open a file for
// sequential read. Listing a path that does not exist returns
// domain.ErrNotFound so callers can distinguish "not yet published" from a
// transport failure.
type Client interface {
	List(ctx context.Context, path string) ([]DirEntry, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Close() error
}

// Config holds the authentication and connection settings for the remote
// server.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SFTPClient is the production Client implementation, backed by a single
// authenticated SSH/SFTP session reused across calls.
type SFTPClient struct {
	sshConn *ssh.Client
	sftp    *sftp.Client
}

// Dial opens one authenticated session to the remote server. The session
// may be reused for the lifetime of the Fetcher; the Fetcher's own
// semaphore caps concurrent outbound streams, not the number of sessions.
func Dial(cfg Config) (*SFTPClient, error) {
	sshCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	sshConn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("remote: open sftp session: %w", err)
	}

	return &SFTPClient{sshConn: sshConn, sftp: sftpClient}, nil
}

func (c *SFTPClient) List(ctx context.Context, path string) ([]DirEntry, error) {
	infos, err := c.sftp.ReadDir(path)
	if err != nil {
		if isNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("remote: list %s: %w", path, err)
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, DirEntry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
			Size:  info.Size(),
		})
	}
	return entries, nil
}

func (c *SFTPClient) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := c.sftp.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("remote: open %s: %w", path, err)
	}
	return f, nil
}

func (c *SFTPClient) Close() error {
	var firstErr error
	if c.sftp != nil {
		if err := c.sftp.Close(); err != nil {
			firstErr = err
		}
	}
	if c.sshConn != nil {
		if err := c.sshConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
