package repository

// Store bundles the repositories of one storage backend with its transactor.
type Store struct {
	Users    UserRepository
	Projects ProjectRepository
	Tasks    TaskRepository
	Activity ActivityRepository
	Tx       Transactor
}
