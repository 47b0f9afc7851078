package scan

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// SSHSource scans a category over an SFTP connection to a mirror host
// reachable only by SSH, rather than by the rsync daemon protocol.
type SSHSource struct {
	// KeyPath overrides the default key search order
	// (~/.ssh/id_ed25519, id_rsa, id_ecdsa) with a single explicit path.
	KeyPath string

	client *ssh.Client
	sftp   *sftp.Client
}

func NewSSHSource(keyPath string) *SSHSource {
	return &SSHSource{KeyPath: keyPath}
}

func (s *SSHSource) Backend() string { return "ssh" }

func (s *SSHSource) Close() error {
	var err error
	if s.sftp != nil {
		err = s.sftp.Close()
	}
	if s.client != nil {
		if cerr := s.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Scan connects to url (an "ssh://[user@]host[:port]/path" spec, or
// equivalent "user@host:path" scp-style spec) and walks the remote tree
// beneath its path over SFTP.
func (s *SSHSource) Scan(rawURL string) ([]entity.FileRecord, error) {
	user, host, remotePath, err := parseSSHURL(rawURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "parsing ssh url %q: %v", rawURL, err)
	}

	if s.client == nil {
		client, err := dialSSH(user, host, s.KeyPath)
		if err != nil {
			return nil, errs.Wrap(errs.ErrScanSource, "dialing %s: %v", host, err)
		}
		s.client = client
	}
	if s.sftp == nil {
		sc, err := sftp.NewClient(s.client)
		if err != nil {
			return nil, errs.Wrap(errs.ErrScanSource, "opening sftp session to %s: %v", host, err)
		}
		s.sftp = sc
	}

	logx.Debug("sftp walk", "host", host, "path", remotePath)
	records := make([]entity.FileRecord, 0, 10_000)
	walker := s.sftp.Walk(remotePath)
	for walker.Step() {
		if walker.Err() != nil {
			logx.Skip("skipping unreadable remote path", "path", walker.Path(), "error", walker.Err())
			continue
		}
		info := walker.Stat()
		base := path.Base(walker.Path())
		if strings.HasPrefix(base, ".") && walker.Path() != remotePath {
			if info.IsDir() {
				walker.SkipDir()
			}
			continue
		}
		rel, relErr := sftpRelPath(remotePath, walker.Path())
		if relErr != nil {
			continue
		}
		records = append(records, entity.FileRecord{
			Path:        rel,
			IsDirectory: info.IsDir(),
			IsReadable:  info.IsDir() && info.Mode().Perm()&0o005 == 0o005,
			Size:        info.Size(),
			ModTimeUnix: info.ModTime().Unix(),
		})
	}
	return records, nil
}

// dialSSH authenticates with, in order: an ssh-agent (if SSH_AUTH_SOCK is
// set), an explicit or default private key, then an interactive password
// prompt. Host keys are checked against ~/.ssh/known_hosts when readable.
func dialSSH(user, host, explicitKeyPath string) (*ssh.Client, error) {
	var authMethods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	keyPaths := defaultKeyPaths()
	if explicitKeyPath != "" {
		keyPaths = []string{explicitKeyPath}
	}
	for _, kp := range keyPaths {
		if signer := loadKey(kp); signer != nil {
			authMethods = append(authMethods, ssh.PublicKeys(signer))
		}
	}

	authMethods = append(authMethods, ssh.PasswordCallback(func() (string, error) {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}))

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if home, err := os.UserHomeDir(); err == nil {
		if cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts")); err == nil {
			hostKeyCallback = cb
		}
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}
	return ssh.Dial("tcp", addr, config)
}

func loadKey(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Passphrase for key %s: ", path)
		pw, pwErr := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if pwErr != nil {
			return nil
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pw)
		if err != nil {
			return nil
		}
	}
	return signer
}

func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}

// parseSSHURL accepts "ssh://[user@]host[:port]/path" or scp-style
// "[user@]host:path".
func parseSSHURL(raw string) (user, host, remotePath string, err error) {
	if strings.HasPrefix(raw, "ssh://") {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", "", perr
		}
		user = u.User.Username()
		host = u.Host
		remotePath = u.Path
		if remotePath == "" {
			remotePath = "/"
		}
		return user, host, remotePath, nil
	}

	rest := raw
	if at := strings.Index(rest, "@"); at >= 0 {
		user = rest[:at]
		rest = rest[at+1:]
	}
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return "", "", "", fmt.Errorf("missing ':' in scp-style spec %q", raw)
	}
	host = rest[:colon]
	remotePath = rest[colon+1:]
	if remotePath == "" {
		remotePath = "."
	}
	return user, host, remotePath, nil
}

func sftpRelPath(base, target string) (string, error) {
	base = path.Clean(base)
	target = path.Clean(target)
	if base == target {
		return "", nil
	}
	if !strings.HasPrefix(target, base+"/") {
		return "", fmt.Errorf("%q is not under %q", target, base)
	}
	return strings.TrimPrefix(target, base+"/"), nil
}
