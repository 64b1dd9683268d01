package sessions

// Repo stores session tree nodes under their raw joined keys, for example
// "diana", "diana;;client_1" and "diana;;client_1;;<grant id>".
type Repo interface {
	Get(key string) (Node, error)
	Set(key string, node Node) error
	Keys() ([]string, error)
}
